package resolver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/agustinrios/cedearscan/internal/cache/memory"
	"github.com/agustinrios/cedearscan/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fxSourceStub serves a fixed rate or error and counts calls.
type fxSourceStub struct {
	name  string
	rate  float64
	err   error
	calls int
}

func (s *fxSourceStub) Name() string { return s.name }

func (s *fxSourceStub) GetRate(ctx context.Context, _ domain.Access) (domain.FXRate, error) {
	s.calls++
	if s.err != nil {
		return domain.FXRate{}, s.err
	}
	return domain.FXRate{Rate: s.rate, Source: s.name, Timestamp: time.Now()}, nil
}

// intlSourceStub serves a fixed underlying quote or error.
type intlSourceStub struct {
	price float64
	err   error
	calls int
}

func (s *intlSourceStub) Name() string { return "finnhub" }

func (s *intlSourceStub) GetQuote(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	s.calls++
	if s.err != nil {
		return domain.PriceQuote{}, s.err
	}
	return domain.PriceQuote{Symbol: symbol, Price: s.price, Currency: "USD", Source: "finnhub", Timestamp: time.Now()}, nil
}

// localSourceStub serves a fixed local quote or error.
type localSourceStub struct {
	name  string
	price float64
	err   error
	calls int
}

func (s *localSourceStub) Name() string { return s.name }

func (s *localSourceStub) GetQuote(ctx context.Context, symbol string, _ domain.Access) (domain.PriceQuote, error) {
	s.calls++
	if s.err != nil {
		return domain.PriceQuote{}, s.err
	}
	return domain.PriceQuote{Symbol: symbol, Price: s.price, Currency: "ARS", Source: s.name, Timestamp: time.Now()}, nil
}

// gatedFXSource is an fxSourceStub that only serves broker sessions.
type gatedFXSource struct {
	fxSourceStub
}

func (s *gatedFXSource) RequiresSession() bool { return true }

// gatedLocalSource is a localSourceStub that only serves broker sessions.
type gatedLocalSource struct {
	localSourceStub
}

func (s *gatedLocalSource) RequiresSession() bool { return true }

// throttledLocalSource is a localSourceStub that limits its own upstream.
type throttledLocalSource struct {
	localSourceStub
}

func (s *throttledLocalSource) ThrottlesOwnRequests() bool { return true }

// grantCounter records limiter grants without ever blocking.
type grantCounter struct {
	grants int
}

func (l *grantCounter) Acquire(ctx context.Context, source string) error {
	l.grants++
	return nil
}

func validSession() domain.Access {
	return domain.Authenticated{Session: domain.Session{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Minute)}}
}

func newFXResolver(sources ...domain.FXRateSource) (*FXResolver, *memory.FXRateCache) {
	cache := memory.NewFXRateCache()
	return NewFXResolver(sources, cache, memory.NewRateLimiter(0), 5*time.Minute, testLogger()), cache
}

func TestFXResolver_PrimaryWins(t *testing.T) {
	primary := &fxSourceStub{name: "dolarapi_ccl", rate: 1275.5}
	secondary := &fxSourceStub{name: "iol_al30", rate: 1280.0}
	r, _ := newFXResolver(primary, secondary)

	rate, err := r.Resolve(context.Background(), domain.Unauthenticated{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rate.Source != "dolarapi_ccl" || rate.FallbackUsed {
		t.Errorf("rate = %+v, want primary without fallback", rate)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary called %d times, want 0", secondary.calls)
	}
}

func TestFXResolver_FallbackMarksRate(t *testing.T) {
	primary := &fxSourceStub{name: "dolarapi_ccl", err: domain.ErrSourceUnavailable}
	secondary := &fxSourceStub{name: "iol_al30", rate: 1300.0}
	r, _ := newFXResolver(primary, secondary)

	rate, err := r.Resolve(context.Background(), domain.Unauthenticated{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rate.Source != "iol_al30" {
		t.Errorf("Source = %q, want secondary", rate.Source)
	}
	if !rate.FallbackUsed {
		t.Error("FallbackUsed = false, want true for second source")
	}
}

func TestFXResolver_CacheSkipsUpstream(t *testing.T) {
	primary := &fxSourceStub{name: "dolarapi_ccl", rate: 1275.5}
	r, _ := newFXResolver(primary)

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(context.Background(), domain.Unauthenticated{}); err != nil {
			t.Fatalf("Resolve #%d: %v", i, err)
		}
	}
	if primary.calls != 1 {
		t.Errorf("upstream called %d times, want 1", primary.calls)
	}
}

func TestFXResolver_CachedSecondaryStillFallback(t *testing.T) {
	primary := &fxSourceStub{name: "dolarapi_ccl", err: domain.ErrSourceUnavailable}
	secondary := &fxSourceStub{name: "iol_al30", rate: 1300.0}
	r, cache := newFXResolver(primary, secondary)

	if err := cache.Put(context.Background(), "iol_al30", domain.FXRate{Rate: 1300.0, Source: "iol_al30", Timestamp: time.Now()}, time.Minute); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	rate, err := r.Resolve(context.Background(), domain.Unauthenticated{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !rate.FallbackUsed {
		t.Error("cached non-primary rate must still report FallbackUsed")
	}
	if secondary.calls != 0 {
		t.Errorf("secondary called %d times, want cache hit", secondary.calls)
	}
}

func TestFXResolver_Exhaustion(t *testing.T) {
	primary := &fxSourceStub{name: "dolarapi_ccl", err: domain.ErrSourceUnavailable}
	secondary := &fxSourceStub{name: "iol_al30", err: domain.ErrUnauthenticated}
	r, _ := newFXResolver(primary, secondary)

	_, err := r.Resolve(context.Background(), domain.Unauthenticated{})
	if !errors.Is(err, domain.ErrAllSourcesExhausted) {
		t.Fatalf("err = %v, want ErrAllSourcesExhausted", err)
	}
	// Both sources must have been attempted before giving up.
	if primary.calls != 1 || secondary.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", primary.calls, secondary.calls)
	}
}

func TestFXResolver_SkipsGatedSourceWithoutSession(t *testing.T) {
	primary := &fxSourceStub{name: "dolarapi_ccl", err: domain.ErrSourceUnavailable}
	secondary := &gatedFXSource{fxSourceStub{name: "iol_al30", rate: 1300.0}}
	limiter := &grantCounter{}
	r := NewFXResolver([]domain.FXRateSource{primary, secondary}, memory.NewFXRateCache(), limiter, 5*time.Minute, testLogger())

	_, err := r.Resolve(context.Background(), domain.Unauthenticated{})
	if !errors.Is(err, domain.ErrAllSourcesExhausted) {
		t.Fatalf("err = %v, want ErrAllSourcesExhausted", err)
	}
	if secondary.calls != 0 {
		t.Errorf("gated source called %d times, want 0 without a session", secondary.calls)
	}
	// Only the primary's attempt paid a grant.
	if limiter.grants != 1 {
		t.Errorf("limiter grants = %d, want 1", limiter.grants)
	}

	rate, err := r.Resolve(context.Background(), validSession())
	if err != nil {
		t.Fatalf("Resolve with session: %v", err)
	}
	if rate.Source != "iol_al30" || secondary.calls != 1 {
		t.Errorf("rate = %+v (calls = %d), want gated source to serve a session", rate, secondary.calls)
	}
}

func TestUnderlyingResolver_FreshFetchAndCache(t *testing.T) {
	source := &intlSourceStub{price: 353.61}
	cache := memory.NewQuoteCache(72 * time.Hour)
	r := NewUnderlyingResolver(source, cache, memory.NewRateLimiter(0), 5*time.Minute, testLogger())

	for i := 0; i < 2; i++ {
		quote, err := r.Resolve(context.Background(), "TSLA")
		if err != nil {
			t.Fatalf("Resolve #%d: %v", i, err)
		}
		if quote.Price != 353.61 || quote.Stale {
			t.Errorf("quote = %+v", quote)
		}
	}
	if source.calls != 1 {
		t.Errorf("upstream called %d times, want 1", source.calls)
	}
}

func TestUnderlyingResolver_OutageServesRetained(t *testing.T) {
	source := &intlSourceStub{price: 353.61}
	cache := memory.NewQuoteCache(72 * time.Hour)
	r := NewUnderlyingResolver(source, cache, memory.NewRateLimiter(0), 5*time.Minute, testLogger())

	// Seed an already-expired but retained entry, as after a weekend.
	seed := domain.PriceQuote{Symbol: "TSLA", Price: 350.12, Currency: "USD", Source: "finnhub", Timestamp: time.Now().Add(-40 * time.Hour)}
	if err := cache.Put(context.Background(), "underlying:TSLA", seed, -time.Second); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	source.err = domain.ErrSourceUnavailable
	quote, err := r.Resolve(context.Background(), "TSLA")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if quote.Price != 350.12 {
		t.Errorf("Price = %v, want retained quote", quote.Price)
	}
	if !quote.Stale {
		t.Error("Stale = false, want true for retained fallback")
	}
	if quote.IsTheoretical {
		t.Error("a retained quote is a real observation, not theoretical")
	}
}

func TestUnderlyingResolver_OutageNoCacheFails(t *testing.T) {
	source := &intlSourceStub{err: domain.ErrQuoteUnavailable}
	cache := memory.NewQuoteCache(72 * time.Hour)
	r := NewUnderlyingResolver(source, cache, memory.NewRateLimiter(0), 5*time.Minute, testLogger())

	if _, err := r.Resolve(context.Background(), "TSLA"); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
}

func testInstrument() domain.Instrument {
	return domain.Instrument{Symbol: "TSLA", UnderlyingSymbol: "TSLA", ConversionRatio: 10, Name: "Tesla Inc."}
}

func newLocalResolver(sources ...domain.LocalMarketQuoteSource) *LocalResolver {
	cache := memory.NewQuoteCache(0)
	return NewLocalResolver(sources, cache, memory.NewRateLimiter(0), 3*time.Minute, testLogger())
}

func TestLocalResolver_DirectQuote(t *testing.T) {
	broker := &localSourceStub{name: "iol", price: 3847.0}
	delayed := &localSourceStub{name: "byma", price: 3850.0}
	r := newLocalResolver(broker, delayed)

	underlying := domain.PriceQuote{Symbol: "TSLA", Price: 353.61, Currency: "USD"}
	fx := domain.FXRate{Rate: 102.0, Source: "dolarapi_ccl"}

	quote, err := r.Resolve(context.Background(), testInstrument(), underlying, fx, domain.Unauthenticated{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if quote.Source != "iol" || quote.Price != 3847.0 || quote.IsTheoretical {
		t.Errorf("quote = %+v, want broker quote", quote)
	}
	if delayed.calls != 0 {
		t.Errorf("delayed source called %d times, want 0", delayed.calls)
	}
}

func TestLocalResolver_BrokerUnauthenticatedFallsThrough(t *testing.T) {
	broker := &localSourceStub{name: "iol", err: domain.ErrUnauthenticated}
	delayed := &localSourceStub{name: "byma", price: 3850.0}
	r := newLocalResolver(broker, delayed)

	underlying := domain.PriceQuote{Symbol: "TSLA", Price: 353.61, Currency: "USD"}
	fx := domain.FXRate{Rate: 102.0, Source: "dolarapi_ccl"}

	quote, err := r.Resolve(context.Background(), testInstrument(), underlying, fx, domain.Unauthenticated{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if quote.Source != "byma" || quote.IsTheoretical {
		t.Errorf("quote = %+v, want delayed feed quote", quote)
	}
}

func TestLocalResolver_SkipsGatedSourceWithoutSession(t *testing.T) {
	broker := &gatedLocalSource{localSourceStub{name: "iol", price: 3847.0}}
	delayed := &localSourceStub{name: "byma", price: 3850.0}
	limiter := &grantCounter{}
	r := NewLocalResolver([]domain.LocalMarketQuoteSource{broker, delayed}, memory.NewQuoteCache(0), limiter, 0, testLogger())

	underlying := domain.PriceQuote{Symbol: "TSLA", Price: 353.61, Currency: "USD"}
	fx := domain.FXRate{Rate: 102.0, Source: "dolarapi_ccl"}

	quote, err := r.Resolve(context.Background(), testInstrument(), underlying, fx, domain.Unauthenticated{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if quote.Source != "byma" {
		t.Errorf("Source = %q, want delayed feed", quote.Source)
	}
	if broker.calls != 0 {
		t.Errorf("gated source called %d times, want 0 without a session", broker.calls)
	}
	// Only the delayed feed's call paid a grant; the broker skip was free.
	if limiter.grants != 1 {
		t.Errorf("limiter grants = %d, want 1", limiter.grants)
	}

	quote, err = r.Resolve(context.Background(), testInstrument(), underlying, fx, validSession())
	if err != nil {
		t.Fatalf("Resolve with session: %v", err)
	}
	if quote.Source != "iol" || broker.calls != 1 {
		t.Errorf("quote = %+v (calls = %d), want broker to serve a session", quote, broker.calls)
	}
}

func TestLocalResolver_SelfThrottledSourceSkipsGrant(t *testing.T) {
	delayed := &throttledLocalSource{localSourceStub{name: "byma", price: 3850.0}}
	limiter := &grantCounter{}
	r := NewLocalResolver([]domain.LocalMarketQuoteSource{delayed}, memory.NewQuoteCache(0), limiter, 0, testLogger())

	underlying := domain.PriceQuote{Symbol: "TSLA", Price: 353.61, Currency: "USD"}
	fx := domain.FXRate{Rate: 102.0, Source: "dolarapi_ccl"}

	if _, err := r.Resolve(context.Background(), testInstrument(), underlying, fx, domain.Unauthenticated{}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if limiter.grants != 0 {
		t.Errorf("limiter grants = %d, want 0 for a self-throttled source", limiter.grants)
	}
	if delayed.calls != 1 {
		t.Errorf("source called %d times, want 1", delayed.calls)
	}
}

func TestLocalResolver_TheoreticalLastResort(t *testing.T) {
	broker := &localSourceStub{name: "iol", err: domain.ErrUnauthenticated}
	delayed := &localSourceStub{name: "byma", err: domain.ErrSourceUnavailable}
	r := newLocalResolver(broker, delayed)

	underlying := domain.PriceQuote{Symbol: "TSLA", Price: 353.61, Currency: "USD"}
	fx := domain.FXRate{Rate: 102.0, Source: "dolarapi_ccl"}

	quote, err := r.Resolve(context.Background(), testInstrument(), underlying, fx, domain.Unauthenticated{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !quote.IsTheoretical || quote.Source != "theoretical" {
		t.Errorf("quote = %+v, want theoretical", quote)
	}
	want := 353.61 * 102.0 / 10.0
	if quote.Price != want {
		t.Errorf("Price = %v, want %v", quote.Price, want)
	}
}

func TestTheoreticalLocalPrice(t *testing.T) {
	got := domain.TheoreticalLocalPrice(353.61, 102.0, 10)
	if want := 3606.822; got != want {
		t.Errorf("TheoreticalLocalPrice = %v, want %v", got, want)
	}
}
