package signalbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nugget/chamberwatch/internal/config"
)

func TestBus_TopicHelpers(t *testing.T) {
	b := New(config.MQTTConfig{TopicPrefix: "chamberwatch"}, []string{"house", "senate"}, nil)

	assert.Equal(t, "chamberwatch/availability", b.availabilityTopic())
	assert.Equal(t, "chamberwatch/house/convened", b.stateTopic("house", "convened"))
	assert.Equal(t, "homeassistant/sensor/chamberwatch_senate/convenes_at/config", b.discoveryTopic("sensor", "senate", "convenes_at"))
}

func TestFormatTimePtr_Nil(t *testing.T) {
	assert.Equal(t, "", formatTimePtr(nil))
}

func TestFormatTimePtr_Set(t *testing.T) {
	ts := time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, ts.Format(time.RFC3339), formatTimePtr(&ts))
}

func TestNewDeviceInfo_ChambersDiffer(t *testing.T) {
	house := NewDeviceInfo("house")
	senate := NewDeviceInfo("senate")
	assert.NotEqual(t, house.Name, senate.Name)
	assert.Equal(t, []string{"chamberwatch_house"}, house.Identifiers)
}
