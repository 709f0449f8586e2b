package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordDelivery(t *testing.T) {
	delivered := testutil.ToFloat64(EventsDelivered.WithLabelValues("probe"))
	dropped := testutil.ToFloat64(EventsDropped.WithLabelValues("probe"))

	RecordDelivery("probe", true)
	RecordDelivery("probe", true)
	RecordDelivery("probe", false)

	assert.Equal(t, delivered+2, testutil.ToFloat64(EventsDelivered.WithLabelValues("probe")))
	assert.Equal(t, dropped+1, testutil.ToFloat64(EventsDropped.WithLabelValues("probe")))
}

func TestLiveFeedGauge(t *testing.T) {
	before := testutil.ToFloat64(LiveFeedsActive)

	IncrementLiveFeeds()
	IncrementLiveFeeds()
	assert.Equal(t, before+2, testutil.ToFloat64(LiveFeedsActive))

	DecrementLiveFeeds()
	DecrementLiveFeeds()
	assert.Equal(t, before, testutil.ToFloat64(LiveFeedsActive))
}

func TestRecordRequest(t *testing.T) {
	counter := RequestsTotal.WithLabelValues("GET", "/probe", "200")
	before := testutil.ToFloat64(counter)

	RecordRequest("GET", "/probe", "200", 0.01)

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
