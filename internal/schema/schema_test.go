package schema

import (
	"testing"
	"time"
)

func TestValidateDate(t *testing.T) {
	tests := []struct {
		name    string
		date    string
		wantErr bool
	}{
		{"valid", "2025-06-01", false},
		{"empty", "", true},
		{"not a date", "next tuesday", true},
		{"wrong layout", "06/01/2025", true},
		{"impossible day", "2025-02-30", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDate(tt.date)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDate(%q) error = %v, wantErr %v", tt.date, err, tt.wantErr)
			}
		})
	}
}

func TestValidateWeekStart(t *testing.T) {
	// 2025-06-02 is a Monday, 2025-06-01 a Sunday.
	if err := ValidateWeekStart("2025-06-02"); err != nil {
		t.Errorf("expected Monday to validate, got %v", err)
	}
	if err := ValidateWeekStart("2025-06-01"); err == nil {
		t.Error("expected non-Monday week start to be rejected")
	}
	if err := ValidateWeekStart(""); err == nil {
		t.Error("expected empty week start to be rejected")
	}
}

func TestWeekStartOf(t *testing.T) {
	tests := []struct {
		day  string
		want string
	}{
		{"2025-06-02", "2025-06-02"}, // Monday maps to itself
		{"2025-06-04", "2025-06-02"}, // Wednesday
		{"2025-06-08", "2025-06-02"}, // Sunday belongs to the preceding Monday
	}

	for _, tt := range tests {
		day, err := time.Parse(DateLayout, tt.day)
		if err != nil {
			t.Fatalf("bad test input %q: %v", tt.day, err)
		}
		if got := WeekStartOf(day); got != tt.want {
			t.Errorf("WeekStartOf(%s) = %s, want %s", tt.day, got, tt.want)
		}
	}
}

func TestDailyLogValidate(t *testing.T) {
	log := &DailyLog{UserID: "u-1", Date: "2025-06-01"}
	if err := log.Validate(); err != nil {
		t.Errorf("valid daily log rejected: %v", err)
	}

	if err := (&DailyLog{Date: "2025-06-01"}).Validate(); err == nil {
		t.Error("expected missing user_id to be rejected")
	}
	if err := (&DailyLog{UserID: "u-1", Date: "soon"}).Validate(); err == nil {
		t.Error("expected bad date to be rejected")
	}
}

func TestWeeklyLogValidate(t *testing.T) {
	log := &WeeklyLog{
		UserID:    "u-1",
		WeekStart: "2025-06-02",
		Tasks: WeeklyTasks{
			Goal:       "Ship v1",
			FocusTasks: []TaskLog{{ID: 1, Text: "design", Completed: false}},
		},
	}
	if err := log.Validate(); err != nil {
		t.Errorf("valid weekly log rejected: %v", err)
	}

	log.WeekStart = "2025-06-03"
	if err := log.Validate(); err == nil {
		t.Error("expected Tuesday week start to be rejected")
	}
}
