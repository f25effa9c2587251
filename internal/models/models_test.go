package models

import (
	"errors"
	"testing"
	"time"

	"github.com/hyperjump/ragindex/internal/apperr"
)

func TestParsePermission(t *testing.T) {
	tests := []struct {
		in      string
		want    Permission
		wantErr bool
	}{
		{"editor", PermissionEditor, false},
		{"user:owner", PermissionOwner, false},
		{" Anonymous ", PermissionAnonymous, false},
		{"superadmin", PermissionSuperadmin, false},
		{"guest", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePermission(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePermission(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, apperr.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultIngestPermissions(t *testing.T) {
	p := DefaultIngestPermissions()
	if len(p) != len(AllPermissions) {
		t.Fatalf("expected %d flags, got %d", len(AllPermissions), len(p))
	}
	for _, perm := range AllPermissions {
		want := perm != PermissionEditor
		if p[perm] != want {
			t.Errorf("%s = %v, want %v", perm, p[perm], want)
		}
	}
	m := Metadata{MetaSource: "a.pdf"}
	p.Apply(m)
	if m["user:editor"] != false || m["user:owner"] != true {
		t.Errorf("metadata after apply: %v", m)
	}
	if got := PermissionsFrom(m); len(got) != len(AllPermissions) {
		t.Errorf("PermissionsFrom read %d flags", len(got))
	}
}

func TestFilter_Matches(t *testing.T) {
	m := Metadata{"user:editor": false, "user:owner": true, MetaPage: 3, MetaSource: "data/a.pdf"}
	tests := []struct {
		name   string
		filter *Filter
		want   bool
	}{
		{"nil filter", nil, true},
		{"owner true", PermissionFilter(PermissionOwner, true), true},
		{"editor true", PermissionFilter(PermissionEditor, true), false},
		{"missing key", PermissionFilter(PermissionRoot, true), false},
		{"page as float", &Filter{Extra: map[string]any{MetaPage: 3.0}}, true},
		{"page as string", &Filter{Extra: map[string]any{MetaPage: "3"}}, false},
		{"combined", &Filter{Permissions: Permissions{PermissionOwner: true}, Extra: map[string]any{MetaSource: "data/a.pdf"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(m); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilter_TermsPermissionWins(t *testing.T) {
	f := &Filter{
		Permissions: Permissions{PermissionOwner: true},
		Extra:       map[string]any{"user:owner": false, MetaSource: "x"},
	}
	terms := f.Terms()
	if len(terms) != 2 {
		t.Fatalf("expected 2 terms, got %v", terms)
	}
	if terms[0].Key != MetaSource || terms[1].Key != "user:owner" || terms[1].Value != true {
		t.Errorf("terms: %+v", terms)
	}
	if err := (&Filter{Extra: map[string]any{"tags": []string{"a"}}}).Validate(); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("expected invalid argument for slice value, got %v", err)
	}
}

func TestMetadata_Clone(t *testing.T) {
	var nilMeta Metadata
	c := nilMeta.Clone()
	if c == nil {
		t.Fatal("Clone of nil should be non-nil")
	}
	orig := Metadata{"a": 1}
	c = orig.Clone()
	c["a"] = 2
	if orig["a"] != 1 {
		t.Error("Clone must not alias")
	}
}

func TestIngestion_Duration(t *testing.T) {
	start := time.Now().Add(-2 * time.Second)
	end := start.Add(1500 * time.Millisecond)
	i := &Ingestion{State: StateDone, StartedAt: &start, FinishedAt: &end}
	if i.Duration() != 1500*time.Millisecond {
		t.Errorf("Duration = %v", i.Duration())
	}
	if !i.Succeeded() || !i.State.Terminal() {
		t.Error("done ingestion should be terminal and succeeded")
	}
	if (&Ingestion{}).Duration() != 0 {
		t.Error("unstarted ingestion has zero duration")
	}
}

func TestTieredResults_Tier(t *testing.T) {
	var nilResults *TieredResults
	if got := nilResults.Tier(PermissionEditor); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
	tr := &TieredResults{Results: map[Permission][]SearchResult{PermissionOwner: {{ID: "a"}}}}
	if len(tr.Tier(PermissionOwner)) != 1 {
		t.Error("owner tier should have one result")
	}
}
