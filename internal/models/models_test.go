package models

import (
	"encoding/json"
	"testing"
)

func TestScenesValue(t *testing.T) {
	url := "https://cdn.example.com/scene_000.png"
	s := Scenes{
		{Index: 0, NarrationText: "A dog wakes up.", ImagePrompt: "a sleepy dog", ImageURL: &url, DurationSeconds: 2.5},
		{Index: 1, NarrationText: "It finds a friend.", ImagePrompt: "two dogs playing", IsPlaceholder: true, DurationSeconds: 2.5},
	}

	data, err := s.Value()
	if err != nil {
		t.Fatalf("failed to marshal scenes: %v", err)
	}
	if data == nil {
		t.Fatal("expected non-nil data")
	}

	// Verify it's valid JSON
	var result []map[string]interface{}
	if err := json.Unmarshal(data.([]byte), &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 scenes, got %d", len(result))
	}
	if result[0]["narration_text"] != "A dog wakes up." {
		t.Errorf("expected narration_text preserved, got %v", result[0]["narration_text"])
	}
	if result[1]["is_placeholder"] != true {
		t.Errorf("expected is_placeholder=true, got %v", result[1]["is_placeholder"])
	}
}

func TestScenesValueNil(t *testing.T) {
	var s Scenes
	data, err := s.Value()
	if err != nil {
		t.Fatalf("failed to marshal nil scenes: %v", err)
	}
	if data != nil {
		t.Errorf("expected nil value for nil scenes, got %v", data)
	}
}

func TestScenesScan(t *testing.T) {
	jsonData := []byte(`[{"index":0,"narration_text":"Hello","image_prompt":"a sunrise","is_placeholder":false,"duration_seconds":3}]`)

	var s Scenes
	if err := s.Scan(jsonData); err != nil {
		t.Fatalf("failed to scan: %v", err)
	}

	if len(s) != 1 {
		t.Fatalf("expected 1 scene, got %d", len(s))
	}
	if s[0].ImagePrompt != "a sunrise" {
		t.Errorf("expected image_prompt=a sunrise, got %q", s[0].ImagePrompt)
	}
	if s[0].DurationSeconds != 3 {
		t.Errorf("expected duration_seconds=3, got %v", s[0].DurationSeconds)
	}
	if s[0].ImageURL != nil {
		t.Errorf("expected nil image_url, got %v", *s[0].ImageURL)
	}
}

func TestScenesScanNil(t *testing.T) {
	s := Scenes{{Index: 0}}
	if err := s.Scan(nil); err != nil {
		t.Fatalf("failed to scan nil: %v", err)
	}
	if s != nil {
		t.Errorf("expected nil scenes after scanning NULL, got %v", s)
	}
}

func TestVideoStatusFailure(t *testing.T) {
	failures := []VideoStatus{StatusStoryboardFailed, StatusAssetsFailed, StatusRenderFailed}
	for _, status := range failures {
		if !status.IsFailure() {
			t.Errorf("expected %s to be a failure status", status)
		}
		if !status.IsTerminal() {
			t.Errorf("expected %s to be terminal", status)
		}
	}

	nonFailures := []VideoStatus{StatusCreated, StatusScriptGenerated, StatusRendering, StatusCompleted, StatusCancelled}
	for _, status := range nonFailures {
		if status.IsFailure() {
			t.Errorf("expected %s to not be a failure status", status)
		}
	}
}

func TestVideoStatusTerminal(t *testing.T) {
	if !StatusCompleted.IsTerminal() {
		t.Error("expected completed to be terminal")
	}
	if !StatusCancelled.IsTerminal() {
		t.Error("expected cancelled to be terminal")
	}
	if StatusRendering.IsTerminal() {
		t.Error("expected rendering to not be terminal")
	}
	if StatusAssetsGenerated.IsTerminal() {
		t.Error("expected assets_generated to not be terminal")
	}
}

func TestVideoStatusBusy(t *testing.T) {
	busy := []VideoStatus{StatusScriptGenerating, StatusStoryboardGenerating, StatusAssetsGenerating, StatusRendering}
	for _, status := range busy {
		if !status.IsBusy() {
			t.Errorf("expected %s to be busy", status)
		}
	}

	idle := []VideoStatus{StatusCreated, StatusScriptGenerated, StatusStoryboardGenerated, StatusAssetsGenerated, StatusCompleted}
	for _, status := range idle {
		if status.IsBusy() {
			t.Errorf("expected %s to not be busy", status)
		}
	}
}

func TestRealImageCount(t *testing.T) {
	real := "https://cdn.example.com/scene_000.png"
	placeholder := "https://cdn.example.com/placeholder.png"

	video := &Video{
		Scenes: Scenes{
			{Index: 0, ImageURL: &real},
			{Index: 1, ImageURL: &placeholder, IsPlaceholder: true},
			{Index: 2},
			{Index: 3, ImageURL: &real},
		},
	}

	if got := video.RealImageCount(); got != 2 {
		t.Errorf("expected 2 real images, got %d", got)
	}
}

func TestSceneImageURLs(t *testing.T) {
	first := "https://cdn.example.com/scene_000.png"
	third := "https://cdn.example.com/scene_002.png"

	scenes := Scenes{
		{Index: 0, ImageURL: &first},
		{Index: 1},
		{Index: 2, ImageURL: &third, IsPlaceholder: true},
	}

	urls := scenes.ImageURLs()
	if len(urls) != 2 {
		t.Fatalf("expected 2 urls, got %d", len(urls))
	}
	if urls[0] != first || urls[1] != third {
		t.Errorf("expected urls in storyboard order, got %v", urls)
	}
}
