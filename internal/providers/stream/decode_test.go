package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecordShapes(t *testing.T) {
	tests := []struct {
		name    string
		record  string
		want    int
		wantErr bool
	}{
		{name: "blank keep-alive", record: "   ", want: 0},
		{name: "single event", record: `{"device_id":"a","timestamp":"2024-01-01T00:00:00Z"}`, want: 1},
		{name: "envelope", record: `{"events":[{"device_id":"a","timestamp":"t"},{"device_id":"b","timestamp":"t"}]}`, want: 2},
		{name: "array", record: `[{"device_id":"a","timestamp":"t"}]`, want: 1},
		{name: "truncated", record: `{"device_id":`, wantErr: true},
		{name: "plain text", record: `hello`, wantErr: true},
		{name: "bad envelope", record: `{"events":{}}`, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeRecord([]byte(tc.record))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tc.want)
		})
	}
}

func TestDecodeDevicesAcceptsListOrEnvelope(t *testing.T) {
	list, err := decodeDevices(strings.NewReader(`[{"device_id":"1","device_name":"A"}]`))
	require.NoError(t, err)
	assert.Len(t, list, 1)

	wrapped, err := decodeDevices(strings.NewReader(`{"readers":[{"device_id":"1"},{"device_id":"2"}]}`))
	require.NoError(t, err)
	assert.Len(t, wrapped, 2)

	_, err = decodeDevices(strings.NewReader(`nope`))
	assert.Error(t, err)
}
