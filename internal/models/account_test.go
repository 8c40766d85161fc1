package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestAccount_Name(t *testing.T) {
	tests := []struct {
		name string
		acc  Account
		want string
	}{
		{"DisplayName", Account{DisplayName: "Work", Email: "w@example.com"}, "Work"},
		{"EmailFallback", Account{Email: "w@example.com"}, "w@example.com"},
		{"Empty", Account{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.acc.Name(); got != tt.want {
				t.Errorf("Name() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAccount_HasQuota(t *testing.T) {
	acc := Account{ID: "a"}
	if acc.HasQuota() {
		t.Error("HasQuota() should be false without quota")
	}

	acc.Quota = &AccountQuota{}
	if acc.HasQuota() {
		t.Error("HasQuota() should be false when never updated")
	}

	acc.Quota.LastUpdated = time.Unix(100, 0)
	if !acc.HasQuota() {
		t.Error("HasQuota() should be true after an update")
	}
}

func TestAccount_Clone(t *testing.T) {
	original := Account{
		ID:          "id-123",
		DisplayName: "Test User",
		Email:       "test@example.com",
		IsActive:    true,
		AddedAt:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Quota: &AccountQuota{
			LastUpdated: time.Unix(1000, 0),
			Resources: []ResourceQuota{
				{Name: ResourceGeminiPro, Percentage: 80, ResetAt: ResetAtPtr(5000)},
			},
		},
	}

	clone := original.Clone()

	if clone.ID != original.ID || clone.DisplayName != original.DisplayName {
		t.Errorf("Clone() identity mismatch: %+v", clone)
	}

	clone.Quota.Resources[0].Percentage = 10
	*clone.Quota.Resources[0].ResetAt = 1

	if original.Quota.Resources[0].Percentage != 80 {
		t.Error("modifying clone percentage affected original")
	}
	if *original.Quota.Resources[0].ResetAt != 5000 {
		t.Error("modifying clone reset time affected original")
	}
}

func TestAccountQuota_Resource(t *testing.T) {
	q := &AccountQuota{Resources: []ResourceQuota{
		{Name: ResourceGeminiPro, Percentage: 50},
		{Name: ResourceClaude, Percentage: 20},
	}}

	if r := q.Resource(ResourceClaude); r == nil || r.Percentage != 20 {
		t.Errorf("Resource(Claude) = %+v, want percentage 20", r)
	}
	if r := q.Resource("missing"); r != nil {
		t.Errorf("Resource(missing) = %+v, want nil", r)
	}

	var nilQuota *AccountQuota
	if r := nilQuota.Resource(ResourceClaude); r != nil {
		t.Error("Resource() on nil quota should return nil")
	}
}

func TestResourceQuota_ResetTime(t *testing.T) {
	r := ResourceQuota{Name: "x"}
	if !r.ResetTime().IsZero() {
		t.Error("ResetTime() should be zero when unknown")
	}

	r.ResetAt = ResetAtPtr(1700000000)
	if got := r.ResetTime().Unix(); got != 1700000000 {
		t.Errorf("ResetTime() = %d, want 1700000000", got)
	}
}

func TestFindAccount(t *testing.T) {
	list := []Account{{ID: "a"}, {ID: "b"}}

	acc := FindAccount(list, "b")
	if acc == nil {
		t.Fatal("FindAccount(b) returned nil")
	}
	acc.IsActive = true
	if !list[1].IsActive {
		t.Error("FindAccount should return a pointer into the slice")
	}

	if FindAccount(list, "c") != nil {
		t.Error("FindAccount(c) should return nil")
	}
}

func TestAccount_JSONRoundTripKeepsQuota(t *testing.T) {
	acc := Account{
		ID:          "a1",
		DisplayName: "Main",
		Quota: &AccountQuota{
			Resources: []ResourceQuota{{Name: ResourceGeminiFlash, Percentage: 42.5}},
		},
	}

	data, err := json.Marshal(acc)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded Account
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded.Quota == nil || decoded.Quota.Resources[0].ResetAt != nil {
		t.Errorf("decoded quota = %+v, want resource without reset time", decoded.Quota)
	}
}
