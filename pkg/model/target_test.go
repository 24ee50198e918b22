package model

import "testing"

func TestTarget_Validate(t *testing.T) {
	tests := []struct {
		name    string
		target  Target
		wantErr bool
	}{
		{"valid addr", AddrTarget("AA:BB:CC:DD:EE:FF"), false},
		{"valid handle", HandleTarget(7), false},
		{"neither", Target{}, true},
		{"both", Target{Addr: "aa:bb:cc:dd:ee:ff", Handle: 7}, true},
		{"garbage addr", Target{Addr: "not-a-mac"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.target.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAddrTarget_Normalizes(t *testing.T) {
	tgt := AddrTarget(" AA:BB:CC:DD:EE:FF ")
	if tgt.Addr != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("Addr = %q, want normalized lower-case", tgt.Addr)
	}
}

func TestRangingRequest_Validate(t *testing.T) {
	valid := func() *RangingRequest {
		return &RangingRequest{Targets: []Target{AddrTarget("aa:bb:cc:dd:ee:01")}}
	}

	t.Run("defaults burst size", func(t *testing.T) {
		r := valid()
		if err := r.Validate(10); err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if r.BurstSize != DefaultBurstSize {
			t.Errorf("BurstSize = %d, want %d", r.BurstSize, DefaultBurstSize)
		}
	})

	t.Run("empty targets", func(t *testing.T) {
		r := &RangingRequest{}
		if err := r.Validate(10); err == nil {
			t.Error("expected error for empty target list")
		}
	})

	t.Run("too many targets", func(t *testing.T) {
		r := &RangingRequest{Targets: []Target{
			AddrTarget("aa:bb:cc:dd:ee:01"),
			AddrTarget("aa:bb:cc:dd:ee:02"),
		}}
		if err := r.Validate(1); err == nil {
			t.Error("expected error above target limit")
		}
	})

	t.Run("burst size out of range", func(t *testing.T) {
		r := valid()
		r.BurstSize = MaxBurstSize + 1
		if err := r.Validate(10); err == nil {
			t.Error("expected error for oversized burst")
		}
	})

	t.Run("has handle targets", func(t *testing.T) {
		r := &RangingRequest{Targets: []Target{AddrTarget("aa:bb:cc:dd:ee:01"), HandleTarget(3)}}
		if !r.HasHandleTargets() {
			t.Error("HasHandleTargets() = false, want true")
		}
		if valid().HasHandleTargets() {
			t.Error("HasHandleTargets() = true for addr-only request")
		}
	})
}

func TestFailedOutcome_CarriesIdentity(t *testing.T) {
	byAddr := FailedOutcome(AddrTarget("aa:bb:cc:dd:ee:01"))
	if byAddr.Addr != "aa:bb:cc:dd:ee:01" || byAddr.Handle != 0 {
		t.Errorf("addr identity not preserved: %+v", byAddr)
	}
	byHandle := FailedOutcome(HandleTarget(9))
	if byHandle.Handle != 9 || byHandle.Addr != "" {
		t.Errorf("handle identity not preserved: %+v", byHandle)
	}
	if byAddr.Status != OutcomeFailed || byHandle.Status != OutcomeFailed {
		t.Error("synthesized outcomes must be FAILED")
	}
}
