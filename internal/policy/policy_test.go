package policy

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestValidateRejectsInvertedBounds(t *testing.T) {
	params := Defaults()
	params.MinBaseFeePpm = 60_000
	params.MaxBaseFeePpm = 50_000

	if err := params.Validate(); !errors.Is(err, ErrParameterOutOfRange) {
		t.Fatalf("expected ErrParameterOutOfRange, got %v", err)
	}
}

func TestValidateRejectsZeroTarget(t *testing.T) {
	params := Defaults()
	params.TargetCapsPerDay = 0

	if err := params.Validate(); !errors.Is(err, ErrParameterOutOfRange) {
		t.Fatalf("expected ErrParameterOutOfRange, got %v", err)
	}
}

func TestValidateRejectsBadScalingUnit(t *testing.T) {
	params := Defaults()
	params.FreqScalingUnit = big.NewInt(0)

	if err := params.Validate(); !errors.Is(err, ErrParameterOutOfRange) {
		t.Fatalf("expected ErrParameterOutOfRange, got %v", err)
	}
}

func TestValidateRejectsUnknownGranularity(t *testing.T) {
	params := Defaults()
	params.CapGranularity = "weekly"

	if err := params.Validate(); !errors.Is(err, ErrParameterOutOfRange) {
		t.Fatalf("expected ErrParameterOutOfRange, got %v", err)
	}
}

func TestProviderOverrideFallback(t *testing.T) {
	provider, err := NewProvider(Defaults())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	poolA := common.HexToHash("0x0a")
	poolB := common.HexToHash("0x0b")

	custom := Defaults()
	custom.MaxAbsTickMove = 500
	if err := provider.SetOverride(poolA, custom); err != nil {
		t.Fatalf("set override: %v", err)
	}

	if got := provider.ParamsFor(poolA).MaxAbsTickMove; got != 500 {
		t.Fatalf("override not applied: %d", got)
	}
	if got := provider.ParamsFor(poolB).MaxAbsTickMove; got != Defaults().MaxAbsTickMove {
		t.Fatalf("fallback not applied: %d", got)
	}
}

func TestProviderRejectsInvalidOverride(t *testing.T) {
	provider, err := NewProvider(Defaults())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	bad := Defaults()
	bad.MaxStepPpm = 0
	if err := provider.SetOverride(common.HexToHash("0x0a"), bad); !errors.Is(err, ErrParameterOutOfRange) {
		t.Fatalf("expected ErrParameterOutOfRange, got %v", err)
	}
}
