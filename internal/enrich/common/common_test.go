package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rivergate/mediareef/internal/domain/content"
	"github.com/rivergate/mediareef/internal/jobs/scheduler"
	"github.com/rivergate/mediareef/internal/platform/logger"
)

type fakeEnricher struct {
	id      string
	class   scheduler.JobClass
	roles   []content.Role
	timeout time.Duration
	result  EnrichmentResult
	err     error
	calls   int
}

func (f *fakeEnricher) ID() string                    { return f.id }
func (f *fakeEnricher) JobClass() scheduler.JobClass  { return f.class }
func (f *fakeEnricher) AllowedRoles() []content.Role  { return f.roles }
func (f *fakeEnricher) Timeout() time.Duration {
	if f.timeout <= 0 {
		return time.Second
	}
	return f.timeout
}
func (f *fakeEnricher) Enrich(ctx context.Context, block *content.Block) (EnrichmentResult, error) {
	f.calls++
	return f.result, f.err
}

func newTestHarness(t *testing.T, sched *scheduler.Scheduler, enrichers []Enricher) *Harness {
	t.Helper()
	log, err := logger.New("test")
	require.NoError(t, err)
	if sched == nil {
		sched = scheduler.New(log, scheduler.Config{})
	}
	return New(log, sched, enrichers, 0)
}

func testBlock() *content.Block {
	b, err := content.NewBlock(uuid.New(), uuid.New(), content.RoleFigure, "some text", nil, nil, nil, nil, nil)
	if err != nil {
		panic(err)
	}
	return b
}

func TestEnrichBlock_SkipsDisallowedRole(t *testing.T) {
	e := &fakeEnricher{id: "e1", class: scheduler.ClassVisionOCR, roles: []content.Role{content.RoleTable}}
	h := newTestHarness(t, nil, []Enricher{e})

	block := testBlock() // role figure, not table
	prov := content.Provenance{BlockID: block.ID}

	gotProv, results := h.EnrichBlock(context.Background(), block, prov)

	require.Empty(t, gotProv.EnricherChain)
	require.Empty(t, results)
	require.Zero(t, e.calls)
}

func TestEnrichBlock_SuccessRecordsOKAndResult(t *testing.T) {
	want := EnrichmentResult{ExtractedText: "hello"}
	e := &fakeEnricher{id: "e1", class: scheduler.ClassVisionOCR, roles: []content.Role{content.RoleFigure}, result: want}
	h := newTestHarness(t, nil, []Enricher{e})

	block := testBlock()
	prov := content.Provenance{BlockID: block.ID}

	gotProv, results := h.EnrichBlock(context.Background(), block, prov)

	require.Len(t, gotProv.EnricherChain, 1)
	require.Equal(t, content.EnricherOK, gotProv.EnricherChain[0].Status)
	require.Equal(t, "e1", gotProv.EnricherChain[0].EnricherID)
	require.Len(t, results, 1)
	require.Equal(t, "hello", results[0].ExtractedText)
}

func TestEnrichBlock_FailureRecordsFailed(t *testing.T) {
	e := &fakeEnricher{id: "e1", class: scheduler.ClassVisionOCR, roles: []content.Role{content.RoleFigure}, err: errors.New("boom")}
	h := newTestHarness(t, nil, []Enricher{e})

	block := testBlock()
	prov := content.Provenance{BlockID: block.ID}

	gotProv, results := h.EnrichBlock(context.Background(), block, prov)

	require.Len(t, gotProv.EnricherChain, 1)
	require.Equal(t, content.EnricherFailed, gotProv.EnricherChain[0].Status)
	require.Empty(t, results)
}

func TestEnrichBlock_BackpressureSkipWhenQueueFull(t *testing.T) {
	log, err := logger.New("test")
	require.NoError(t, err)
	sched := scheduler.New(log, scheduler.Config{MaxInFlight: map[scheduler.JobClass]int{scheduler.ClassVisionOCR: 0}})

	e := &fakeEnricher{id: "e1", class: scheduler.ClassVisionOCR, roles: []content.Role{content.RoleFigure}}
	h := newTestHarness(t, sched, []Enricher{e})

	block := testBlock()
	prov := content.Provenance{BlockID: block.ID}

	gotProv, results := h.EnrichBlock(context.Background(), block, prov)

	require.Len(t, gotProv.EnricherChain, 1)
	require.Equal(t, content.EnricherSkippedBackpressure, gotProv.EnricherChain[0].Status)
	require.Empty(t, results)
	require.Zero(t, e.calls)
}

func TestEnrichBlock_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	e := &fakeEnricher{id: "e1", class: scheduler.ClassVisionOCR, roles: []content.Role{content.RoleFigure}, err: errors.New("boom")}
	h := newTestHarness(t, nil, []Enricher{e})

	block := testBlock()
	prov := content.Provenance{BlockID: block.ID}

	var lastStatus content.EnricherStatus
	for i := 0; i < 5; i++ {
		p, _ := h.EnrichBlock(context.Background(), block, prov)
		lastStatus = p.EnricherChain[len(p.EnricherChain)-1].Status
		prov = content.Provenance{BlockID: block.ID}
	}

	require.Equal(t, content.EnricherBreakerOpen, lastStatus)
	require.Less(t, e.calls, 5)
}

func TestEnrichBlock_MultipleEnrichersRunIndependently(t *testing.T) {
	ok := &fakeEnricher{id: "ok", class: scheduler.ClassVisionOCR, roles: []content.Role{content.RoleFigure}, result: EnrichmentResult{Caption: "c"}}
	bad := &fakeEnricher{id: "bad", class: scheduler.ClassVisualCaption, roles: []content.Role{content.RoleFigure}, err: errors.New("boom")}
	h := newTestHarness(t, nil, []Enricher{ok, bad})

	block := testBlock()
	prov := content.Provenance{BlockID: block.ID}

	gotProv, results := h.EnrichBlock(context.Background(), block, prov)

	require.Len(t, gotProv.EnricherChain, 2)
	require.Equal(t, content.EnricherOK, gotProv.EnricherChain[0].Status)
	require.Equal(t, content.EnricherFailed, gotProv.EnricherChain[1].Status)
	require.Len(t, results, 1)
	require.Equal(t, "c", results[0].Caption)
}
