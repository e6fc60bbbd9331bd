package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSymptomStatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		value    SymptomStatus
		code     int
		expected string
	}{
		{"Yes", YES, 1, "YES"},
		{"No", NO, 2, "NO"},
		{"No info", NO_INFO, 3, "NO_INFO"},
		{"Confused", CONFUSED, 4, "CONFUSED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value.Code() != tt.code {
				t.Errorf("Expected code %d, got %d", tt.code, tt.value.Code())
			}
			if tt.value.String() != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, tt.value.String())
			}
			if !tt.value.IsValid() {
				t.Errorf("Expected %s to be valid", tt.expected)
			}
		})
	}

	if SymptomStatus(0).IsValid() || SymptomStatus(5).IsValid() {
		t.Errorf("Expected codes outside 1..4 to be invalid")
	}
}

func TestParseSymptomStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected SymptomStatus
		wantErr  bool
	}{
		{"YES", YES, false},
		{"no", NO, false},
		{" No_Info ", NO_INFO, false},
		{"confused", CONFUSED, false},
		{"MAYBE", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSymptomStatus(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidStatus) {
					t.Errorf("Expected ErrInvalidStatus, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestStatusFromCode(t *testing.T) {
	for _, s := range AllStatuses {
		got, err := StatusFromCode(s.Code())
		if err != nil || got != s {
			t.Errorf("Expected %s from code %d, got %s (%v)", s, s.Code(), got, err)
		}
	}
	if _, err := StatusFromCode(7); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("Expected ErrInvalidStatus for code 7, got %v", err)
	}
}

func TestSymptomStatusJSON(t *testing.T) {
	in := map[string]SymptomStatus{"температура": NO, "недомогание": YES}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out map[string]SymptomStatus
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out["температура"] != NO || out["недомогание"] != YES {
		t.Errorf("Unexpected round trip result: %v", out)
	}

	if err := json.Unmarshal([]byte(`{"x":"SOMETIMES"}`), &out); err == nil {
		t.Errorf("Expected error for unknown status name")
	}
}

func TestCombineEntity(t *testing.T) {
	tests := []struct {
		old      SymptomStatus
		negated  bool
		expected SymptomStatus
	}{
		{YES, false, YES},
		{YES, true, CONFUSED},
		{NO, true, NO},
		{NO, false, CONFUSED},
		{NO_INFO, false, YES},
		{NO_INFO, true, NO},
		{CONFUSED, false, CONFUSED},
		{CONFUSED, true, CONFUSED},
	}

	for _, tt := range tests {
		got := CombineEntity(tt.old, tt.negated)
		if got != tt.expected {
			t.Errorf("CombineEntity(%s, %v) = %s, expected %s", tt.old, tt.negated, got, tt.expected)
		}
	}
}

func TestCombineRecords(t *testing.T) {
	expected := map[SymptomStatus]map[SymptomStatus]SymptomStatus{
		YES:      {YES: YES, NO: CONFUSED, NO_INFO: YES, CONFUSED: YES},
		NO:       {YES: CONFUSED, NO: NO, NO_INFO: NO, CONFUSED: NO},
		NO_INFO:  {YES: YES, NO: NO, NO_INFO: NO_INFO, CONFUSED: CONFUSED},
		CONFUSED: {YES: YES, NO: NO, NO_INFO: CONFUSED, CONFUSED: CONFUSED},
	}

	for _, old := range AllStatuses {
		for _, next := range AllStatuses {
			got := CombineRecords(old, next)
			if got != expected[old][next] {
				t.Errorf("CombineRecords(%s, %s) = %s, expected %s", old, next, got, expected[old][next])
			}
		}
	}
}

func TestCombineRecordsIsNotCommutative(t *testing.T) {
	if CombineRecords(YES, CONFUSED) == CombineRecords(CONFUSED, YES) {
		t.Errorf("Expected YES/CONFUSED merge to depend on argument order")
	}
	if CombineRecords(YES, CONFUSED) != YES {
		t.Errorf("Expected a definite old status to win over a new CONFUSED")
	}
	if CombineRecords(CONFUSED, YES) != YES {
		t.Errorf("Expected an old CONFUSED to be replaced by a new YES")
	}
}

func TestCombineEntityStaysInLattice(t *testing.T) {
	for _, s := range AllStatuses {
		for _, negated := range []bool{false, true} {
			if !CombineEntity(s, negated).IsValid() {
				t.Errorf("CombineEntity(%s, %v) left the status set", s, negated)
			}
		}
	}
}

func TestSymptomEqualityAndColumnName(t *testing.T) {
	a := NewSymptom("болеть голова", [][]string{{"болеть", "голова"}})
	b := NewSymptom("болеть голова", nil)

	if !a.Equal(b) {
		t.Errorf("Expected symptoms with the same name to be equal")
	}
	if a.ColumnName() != "болеть_голова" {
		t.Errorf("Expected underscored column name, got %s", a.ColumnName())
	}

	clone := a.Clone()
	clone.Patterns[0][0] = "changed"
	if a.Patterns[0][0] != "болеть" {
		t.Errorf("Expected Clone to deep copy patterns")
	}
}
