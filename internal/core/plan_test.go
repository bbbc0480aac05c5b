package core

import (
	"reflect"
	"testing"

	"github.com/JonMunkholm/census/internal/census"
)

func TestShare(t *testing.T) {
	tests := []struct {
		count, part, total int64
		want               int64
	}{
		{120, 800, 1000, 96},
		{130, 800, 1000, 104},
		{1, 1, 2, 1}, // 0.5 rounds up
		{1, 1, 3, 0}, // 0.33 rounds down
		{2, 1, 3, 1}, // 0.67 rounds up
		{10, 0, 100, 0},
		{0, 10, 100, 0},
		{10, 10, 0, 0},
		{5_000_000, 100_000_000, 140_000_000, 3_571_429},
	}

	for _, tt := range tests {
		if got := share(tt.count, tt.part, tt.total); got != tt.want {
			t.Errorf("share(%d, %d, %d) = %d, want %d", tt.count, tt.part, tt.total, got, tt.want)
		}
	}
}

func TestBuildPlan(t *testing.T) {
	nat := census.NationalityData{
		"Sample Region": {Total: 1000, Nations: map[string]int{"Russians": 800, "Tatars": 200}},
		"No Total":      {Total: 0, Nations: map[string]int{}},
	}
	ages := census.AgeSexData{
		"Sample Region": {
			"0 - 4":      {Male: 120, Female: 130},
			"85 и более": {Male: 1, Female: 3},
		},
		"No Total": {"0 - 4": {Male: 5, Female: 5}},
	}
	rec := census.Reconcile(nat, ages, census.MatchOptions{Mode: census.MatchExact})

	plan := BuildPlan(nat, ages, rec, PlanOptions{BaseYear: 2010, Genders: Genders{Male: "M", Female: "F"}})

	want := []Fact{
		{Year: "(2006, 2010)", Nation: "Russians", Territory: "Sample Region", Gender: "M", Count: 96},
		{Year: "(2006, 2010)", Nation: "Russians", Territory: "Sample Region", Gender: "F", Count: 104},
		{Year: "(2006, 2010)", Nation: "Tatars", Territory: "Sample Region", Gender: "M", Count: 24},
		{Year: "(2006, 2010)", Nation: "Tatars", Territory: "Sample Region", Gender: "F", Count: 26},
		{Year: "(1890, 1925)", Nation: "Russians", Territory: "Sample Region", Gender: "M", Count: 1},
		{Year: "(1890, 1925)", Nation: "Russians", Territory: "Sample Region", Gender: "F", Count: 2},
		{Year: "(1890, 1925)", Nation: "Tatars", Territory: "Sample Region", Gender: "F", Count: 1},
	}
	if !reflect.DeepEqual(plan.Facts, want) {
		t.Errorf("facts =\n%+v\nwant\n%+v", plan.Facts, want)
	}

	wantSkips := PlanSkips{RegionsWithoutTotal: 1, ZeroCounts: 1}
	if plan.Skips != wantSkips {
		t.Errorf("skips = %+v, want %+v", plan.Skips, wantSkips)
	}
}

func TestBuildPlan_DuplicateYearRange(t *testing.T) {
	nat := census.NationalityData{"R": {Total: 10, Nations: map[string]int{"N": 10}}}
	ages := census.AgeSexData{"R": {
		"85 и более": {Male: 4, Female: 4},
		"85+":        {Male: 9, Female: 9},
	}}
	rec := census.Reconcile(nat, ages, census.MatchOptions{})

	plan := BuildPlan(nat, ages, rec, PlanOptions{})

	if len(plan.Facts) != 2 {
		t.Fatalf("got %d facts, want 2: %+v", len(plan.Facts), plan.Facts)
	}
	// "85 и более" sorts first: ' ' < '+'.
	if plan.Facts[0].Count != 4 {
		t.Errorf("first label in sorted order should win, got %+v", plan.Facts[0])
	}
	if plan.Skips.DuplicateKeys != 2 {
		t.Errorf("DuplicateKeys = %d, want 2", plan.Skips.DuplicateKeys)
	}
	if plan.Facts[0].Gender != "Мужчины" || plan.Facts[1].Gender != "Женщины" {
		t.Errorf("default genders not applied: %+v", plan.Facts)
	}
}

func TestBuildPlan_OnlyMatchedRegions(t *testing.T) {
	nat := census.NationalityData{"Left": {Total: 10, Nations: map[string]int{"N": 10}}}
	ages := census.AgeSexData{"Right": {"0 - 4": {Male: 1, Female: 1}}}
	rec := census.Reconcile(nat, ages, census.MatchOptions{})

	plan := BuildPlan(nat, ages, rec, PlanOptions{})
	if len(plan.Facts) != 0 {
		t.Errorf("unmatched regions produced facts: %+v", plan.Facts)
	}
}

func TestBuildPlan_Deterministic(t *testing.T) {
	nat := census.NationalityData{
		"A Region": {Total: 100, Nations: map[string]int{"X": 30, "Y": 70, "Z": 5}},
		"B Region": {Total: 50, Nations: map[string]int{"X": 50}},
	}
	ages := census.AgeSexData{
		"A Region": {"0 - 4": {Male: 10, Female: 11}, "5 - 9": {Male: 12, Female: 13}},
		"B Region": {"0 - 4": {Male: 3, Female: 4}},
	}
	rec := census.Reconcile(nat, ages, census.MatchOptions{})

	first := BuildPlan(nat, ages, rec, PlanOptions{})
	for i := 0; i < 10; i++ {
		if again := BuildPlan(nat, ages, rec, PlanOptions{}); !reflect.DeepEqual(first, again) {
			t.Fatal("BuildPlan is not deterministic")
		}
	}
}

func TestPlan_Distinct(t *testing.T) {
	p := Plan{Facts: []Fact{
		{Nation: "b", Year: "y1"},
		{Nation: "a", Year: "y1"},
		{Nation: "b", Year: "y2"},
	}}
	if got := p.Distinct(func(f Fact) string { return f.Nation }); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Distinct(nation) = %v", got)
	}
	if got := p.Distinct(func(f Fact) string { return f.Year }); len(got) != 2 {
		t.Errorf("Distinct(year) = %v", got)
	}
}
