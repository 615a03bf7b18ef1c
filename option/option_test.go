package option

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApply_Defaults(t *testing.T) {
	o := Apply()
	assert.Equal(t, time.Second, o.RateWindow)
	assert.Equal(t, 2*time.Second, o.PollInterval)
	assert.NotNil(t, o.Logger)
	assert.NotNil(t, o.Options)
	assert.Nil(t, o.Metrics)

	o = Apply(
		WithAPIKey("k"),
		WithRateLimit(10, 2*time.Second),
		WithRetry(3, 50*time.Millisecond),
		WithOption("okx.tbt", true),
	)
	assert.Equal(t, "k", o.APIKey)
	assert.Equal(t, 10, o.RateLimit)
	assert.Equal(t, 2*time.Second, o.RateWindow)
	assert.Equal(t, 3, o.RetryMax)
	assert.Equal(t, true, o.Options["okx.tbt"])
}

func TestApply_NonPositivePollIntervalFallsBack(t *testing.T) {
	assert.Equal(t, DefaultPollInterval, Apply(WithPollInterval(0)).PollInterval)
	assert.Equal(t, DefaultPollInterval, Apply(WithPollInterval(-time.Second)).PollInterval)
	assert.Equal(t, 50*time.Millisecond, Apply(WithPollInterval(50*time.Millisecond)).PollInterval)
}

func TestApplyArgs(t *testing.T) {
	a := ApplyArgs()
	assert.Equal(t, 50, a.LimitOr(50))
	assert.Equal(t, GTC, a.TimeInForceOr(GTC))
	assert.False(t, a.IsPostOnly())

	a = ApplyArgs(WithLimit(0))
	assert.Equal(t, 50, a.LimitOr(50), "non-positive limits fall back")

	a = ApplyArgs(WithLimit(5), WithTimeInForce(IOC), WithPostOnly(true))
	assert.Equal(t, 5, a.LimitOr(50))
	assert.Equal(t, IOC, a.TimeInForceOr(GTC))
	assert.True(t, a.IsPostOnly())
}

func TestTimeInForce(t *testing.T) {
	assert.Equal(t, "ioc", IOC.Lower())
	assert.Equal(t, "FOK", TimeInForce("fok").Upper())
	assert.True(t, GTC.IsGTC())
	assert.True(t, TimeInForce("").IsGTC())
	assert.False(t, FOK.IsGTC())
}
