package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackReservation(t *testing.T) {
	before := testutil.ToFloat64(ticketReservations.WithLabelValues("reserved"))
	TrackReservation("reserved")
	TrackReservation("reserved")
	assert.Equal(t, before+2, testutil.ToFloat64(ticketReservations.WithLabelValues("reserved")))
}

func TestTrackReleaseFailure(t *testing.T) {
	before := testutil.ToFloat64(releaseFailures)
	TrackReleaseFailure()
	assert.Equal(t, before+1, testutil.ToFloat64(releaseFailures))
}

func TestTrackPayoutTransition(t *testing.T) {
	before := testutil.ToFloat64(payoutTransitions.WithLabelValues("approved"))
	TrackPayoutTransition("approved")
	assert.Equal(t, before+1, testutil.ToFloat64(payoutTransitions.WithLabelValues("approved")))
}

func TestTrackCheckout(t *testing.T) {
	TrackCheckout(time.Now().Add(-50 * time.Millisecond))
	assert.Equal(t, 1, testutil.CollectAndCount(checkoutDuration))
}
