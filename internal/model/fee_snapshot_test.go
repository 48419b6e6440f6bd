package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestFeeSnapshotJSONRoundTrip(t *testing.T) {
	original := FeeSnapshot{
		Pool:        "0x94e6a9a1e0ad98c1e1d26b45ae4d5a3b9e5a3d4b94e6a9a1e0ad98c1e1d26b45",
		Timestamp:   1700000000,
		BaseFeePpm:  3000,
		SurgeFeePpm: 9000,
		TotalFeePpm: 12000,
		InCap:       true,
		EmittedAt:   "2024-01-01T00:00:00Z",
	}

	b, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded FeeSnapshot
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round-trip mismatch: %+v != %+v", original, decoded)
	}
}
