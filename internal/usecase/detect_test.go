package usecase

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
	domsvc "RegimeLab/internal/domain/service"
	"RegimeLab/internal/services/backtest"
	"RegimeLab/internal/services/regime"
	"RegimeLab/internal/services/report"
)

type stubBars struct {
	equity []models.Bar
	vix    []models.Bar
	eqErr  error
	vixErr error
}

var _ domrepo.BarSource = (*stubBars)(nil)

func (s *stubBars) Load(_ context.Context, symbol string, _, _ time.Time) ([]models.Bar, error) {
	if symbol == "^VIX" {
		if s.vixErr != nil {
			return nil, s.vixErr
		}
		return s.vix, nil
	}
	if s.eqErr != nil {
		return nil, s.eqErr
	}
	return s.equity, nil
}

type stubArtifacts struct {
	mu         sync.Mutex
	detections []*models.Detection
	strategies []*models.StrategyReport
	detErr     error
	stratErr   error
}

var _ domrepo.ArtifactStore = (*stubArtifacts)(nil)

func (s *stubArtifacts) Init(context.Context) error { return nil }
func (s *stubArtifacts) Close() error               { return nil }

func (s *stubArtifacts) StoreDetection(_ context.Context, d *models.Detection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detErr != nil {
		return s.detErr
	}
	s.detections = append(s.detections, d)
	return nil
}

func (s *stubArtifacts) StoreStrategy(_ context.Context, r *models.StrategyReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stratErr != nil {
		return s.stratErr
	}
	s.strategies = append(s.strategies, r)
	return nil
}

func (s *stubArtifacts) detectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.detections)
}

type stubPublisher struct {
	mu        sync.Mutex
	published []*models.Detection
	err       error
}

var _ domrepo.EventPublisher = (*stubPublisher)(nil)

func (s *stubPublisher) PublishChanges(_ context.Context, d *models.Detection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.published = append(s.published, d)
	return nil
}

func (s *stubPublisher) Close() error { return nil }

type stubModelCache struct {
	mu     sync.Mutex
	m      map[string]*models.Detection
	getErr error
	setErr error
	gets   int
	sets   int
}

var _ domrepo.ModelCache = (*stubModelCache)(nil)

func newStubModelCache() *stubModelCache {
	return &stubModelCache{m: make(map[string]*models.Detection)}
}

func (s *stubModelCache) Get(_ context.Context, key string) (*models.Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.m[key], nil
}

func (s *stubModelCache) Set(_ context.Context, key string, d *models.Detection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	if s.setErr != nil {
		return s.setErr
	}
	s.m[key] = d
	return nil
}

type stubMetrics struct {
	mu        sync.Mutex
	runs      map[string]int
	errs      map[string]int
	regime    map[string]int
	artifacts map[string]int
}

var _ domrepo.Metrics = (*stubMetrics)(nil)

func newStubMetrics() *stubMetrics {
	return &stubMetrics{
		runs:      make(map[string]int),
		errs:      make(map[string]int),
		regime:    make(map[string]int),
		artifacts: make(map[string]int),
	}
}

func (s *stubMetrics) RecordRun(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[status]++
}

func (s *stubMetrics) RecordStageDuration(string, float64) {}

func (s *stubMetrics) RecordRegimeDays(label string, days int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regime[label] += days
}

func (s *stubMetrics) RecordArtifactSent(backend, kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[backend+"/"+kind]++
}

func (s *stubMetrics) RecordError(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[kind]++
}

func (s *stubMetrics) runCount(status string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[status]
}

func (s *stubMetrics) errCount(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs[kind]
}

type stubBarStore struct {
	mu     sync.Mutex
	stored int
	err    error
}

var _ domrepo.BarStore = (*stubBarStore)(nil)

func (s *stubBarStore) Init(context.Context) error { return nil }
func (s *stubBarStore) Health(context.Context) error {
	return nil
}
func (s *stubBarStore) Close() error { return nil }

func (s *stubBarStore) Load(context.Context, string, time.Time, time.Time) ([]models.Bar, error) {
	return nil, nil
}

func (s *stubBarStore) StoreBars(_ context.Context, bars []models.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.stored++
	return nil
}

func (s *stubBarStore) storedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stored
}

type stubSim struct {
	rep   *models.StrategyReport
	err   error
	calls int
}

var _ domsvc.StrategySimulator = (*stubSim)(nil)

func (s *stubSim) Simulate(context.Context, string, []models.FeatureRow) (*models.StrategyReport, error) {
	s.calls++
	return s.rep, s.err
}

type stubReporter struct {
	rep *models.RegimeReport
	err error
}

var _ domsvc.Reporter = (*stubReporter)(nil)

func (s *stubReporter) Report(context.Context, string, []models.FeatureRow, *models.Detection) (*models.RegimeReport, error) {
	return s.rep, s.err
}

// synthMarket produces 90 daily bars: 45 calm days drifting up on low
// volatility, then 45 stressed days selling off on high volatility, with
// the volatility index tracking the phase.
func synthMarket(seed int64) (equity, vix []models.Bar) {
	rng := rand.New(rand.NewSource(seed))
	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := 0; i < 90; i++ {
		var r, level float64
		if i < 45 {
			r = 0.004 + 0.0005*rng.NormFloat64()
			level = 12 + 0.5*rng.NormFloat64()
		} else {
			r = -0.008 + 0.004*rng.NormFloat64()
			level = 33 + rng.NormFloat64()
		}
		price *= math.Exp(r)
		date := epoch.AddDate(0, 0, i)
		equity = append(equity, models.Bar{
			Date: date, Symbol: "SPY",
			Open: price, High: price, Low: price, Close: price, Volume: 1e6,
		})
		vix = append(vix, models.Bar{Date: date, Symbol: "^VIX", Close: level})
	}
	return equity, vix
}

func testFitConfig() regime.Config {
	cfg := regime.DefaultConfig()
	cfg.MinComponents = 2
	cfg.MaxComponents = 2
	cfg.Families = []regime.CovFamily{regime.FamilyEEE}
	cfg.Restarts = 2
	return cfg
}

type detectFixture struct {
	bars     *stubBars
	store    *stubArtifacts
	barStore *stubBarStore
	cache    *stubModelCache
	metrics  *stubMetrics
	results  *Results
	uc       *DetectUsecase
}

func newDetectFixture() *detectFixture {
	equity, vix := synthMarket(17)
	f := &detectFixture{
		bars:     &stubBars{equity: equity, vix: vix},
		store:    &stubArtifacts{},
		barStore: &stubBarStore{},
		cache:    newStubModelCache(),
		metrics:  newStubMetrics(),
		results:  NewResults(),
	}
	det := regime.NewDetector(testFitConfig())
	router := NewArtifactRouter(f.store, nil, f.metrics, domrepo.BackendCSV)
	params := DetectParams{Symbol: "SPY", VIXSymbol: "^VIX", Window: 5}
	f.uc = NewDetectUsecase(f.bars, det, router, f.results, f.metrics, params)
	f.uc.SetBarStore(f.barStore)
	f.uc.SetModelCache(f.cache)
	return f
}

func TestRunOnceHappyPath(t *testing.T) {
	f := newDetectFixture()
	f.uc.SetReporter(report.NewReporter())
	f.uc.SetSimulator(backtest.NewSimulator(backtest.DefaultConfig(), regime.NewDetector(testFitConfig())))

	det, err := f.uc.RunOnce(context.Background(), false)
	require.NoError(t, err)
	require.NotNil(t, det)

	assert.Equal(t, "SPY", det.Symbol)
	assert.Len(t, det.Points, 90)
	assert.Len(t, det.Fingerprint, 64)
	require.Len(t, det.Summaries, 2)
	labels := []string{det.Summaries[0].Label, det.Summaries[1].Label}
	assert.ElementsMatch(t, []string{models.LabelBull, models.LabelBear}, labels)

	assert.Equal(t, 1, f.metrics.runCount("ok"))
	total := 0
	f.metrics.mu.Lock()
	for _, d := range f.metrics.regime {
		total += d
	}
	f.metrics.mu.Unlock()
	assert.Equal(t, 90, total, "every observation lands in a regime")

	assert.Same(t, det, f.results.Detection())
	assert.NotNil(t, f.results.Report())
	assert.NotNil(t, f.results.Strategy())
	assert.Equal(t, 1, f.store.detectionCount())
	assert.Equal(t, 2, f.barStore.storedCount(), "equity and vix bars persisted")
	assert.Equal(t, 1, f.cache.sets)
}

func TestRunOnceCacheHit(t *testing.T) {
	f := newDetectFixture()

	first, err := f.uc.RunOnce(context.Background(), false)
	require.NoError(t, err)

	second, err := f.uc.RunOnce(context.Background(), false)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, f.metrics.runCount("ok"))
	assert.Equal(t, 1, f.metrics.runCount("cached"))
	assert.Equal(t, 2, f.cache.gets)
	assert.Equal(t, 1, f.cache.sets)
	assert.Equal(t, 1, f.store.detectionCount(), "cached runs are not re-routed")
	assert.Same(t, first, f.results.Detection())
}

func TestRunOnceForceRefits(t *testing.T) {
	f := newDetectFixture()

	first, err := f.uc.RunOnce(context.Background(), false)
	require.NoError(t, err)

	forced, err := f.uc.RunOnce(context.Background(), true)
	require.NoError(t, err)

	assert.NotSame(t, first, forced)
	assert.Equal(t, first.Fingerprint, forced.Fingerprint)
	assert.Equal(t, 2, f.metrics.runCount("ok"))
	assert.Equal(t, 0, f.metrics.runCount("cached"))
	assert.Equal(t, 1, f.cache.gets, "force skips the cache lookup")
	assert.Equal(t, 2, f.cache.sets)
	assert.Equal(t, 2, f.store.detectionCount())
}

func TestRunOnceLoadFailure(t *testing.T) {
	f := newDetectFixture()
	f.bars.eqErr = errors.New("connection refused")

	det, err := f.uc.RunOnce(context.Background(), false)
	assert.Nil(t, det)
	assert.ErrorContains(t, err, "load features")
	assert.ErrorContains(t, err, "load SPY")
	assert.Equal(t, 1, f.metrics.runCount("failed"))
	assert.Equal(t, 1, f.metrics.errCount("load"))
}

func TestRunOnceVIXFailureDegrades(t *testing.T) {
	// A dead VIX feed is only a warning at load time, but every row then
	// misses vix_level and selection finds nothing complete to fit.
	f := newDetectFixture()
	f.bars.vixErr = errors.New("no data")

	det, err := f.uc.RunOnce(context.Background(), false)
	assert.Nil(t, det)
	assert.ErrorContains(t, err, "detect")
	assert.ErrorContains(t, err, "no rows with all features present")
	assert.Equal(t, 1, f.metrics.errCount("load_vix"))
	assert.Equal(t, 1, f.metrics.errCount("detect"))
	assert.Equal(t, 1, f.metrics.runCount("failed"))
}

func TestRunOnceCacheErrorsAreNonFatal(t *testing.T) {
	f := newDetectFixture()
	f.cache.getErr = errors.New("redis timeout")
	f.cache.setErr = errors.New("redis timeout")

	det, err := f.uc.RunOnce(context.Background(), false)
	require.NoError(t, err)
	require.NotNil(t, det)
	assert.Equal(t, 1, f.metrics.runCount("ok"))
	assert.Equal(t, 1, f.metrics.errCount("cache_get"))
	assert.Equal(t, 1, f.metrics.errCount("cache_set"))
}

func TestRunOnceAncillariesWarnOnly(t *testing.T) {
	f := newDetectFixture()
	f.uc.SetReporter(&stubReporter{err: errors.New("report boom")})
	f.uc.SetSimulator(&stubSim{err: errors.New("sim boom")})
	f.barStore.err = errors.New("disk full")

	det, err := f.uc.RunOnce(context.Background(), false)
	require.NoError(t, err)
	require.NotNil(t, det)
	assert.Equal(t, 1, f.metrics.errCount("report"))
	assert.Equal(t, 1, f.metrics.errCount("strategy"))
	assert.Equal(t, 2, f.metrics.errCount("store_bars"))
	assert.Nil(t, f.results.Report())
	assert.Nil(t, f.results.Strategy())
	assert.Equal(t, 1, f.store.detectionCount(), "detection still routed")
}

func TestRunOnceRouteFailure(t *testing.T) {
	f := newDetectFixture()
	f.store.detErr = errors.New("disk full")

	det, err := f.uc.RunOnce(context.Background(), false)
	require.NotNil(t, det, "detection is returned alongside the routing error")
	assert.ErrorContains(t, err, "route artifacts")
	assert.Equal(t, 1, f.metrics.runCount("ok"))
	assert.Equal(t, 1, f.metrics.errCount("route"))
	assert.Same(t, det, f.results.Detection())
}

func TestRunOnceRouteStrategyFailure(t *testing.T) {
	f := newDetectFixture()
	f.uc.SetSimulator(&stubSim{rep: &models.StrategyReport{Symbol: "SPY"}})
	f.store.stratErr = errors.New("disk full")

	det, err := f.uc.RunOnce(context.Background(), false)
	require.NotNil(t, det)
	assert.ErrorContains(t, err, "route strategy")
	assert.Equal(t, 1, f.metrics.errCount("route_strategy"))
	assert.Equal(t, 0, f.store.detectionCount(), "detection routing never reached")
}
