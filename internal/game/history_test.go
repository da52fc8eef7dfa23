package game

import (
	"fmt"
	"testing"
)

func scene(id string, choices int) Scene {
	s := Scene{ID: id, Narration: "n-" + id}
	for i := 0; i < choices; i++ {
		s.Choices = append(s.Choices, Choice{ID: fmt.Sprintf("%s-c%d", id, i), Text: "go"})
	}
	return s
}

func TestNavigationHistoryCap(t *testing.T) {
	h := NewNavigationHistory()
	for i := 0; i < NavigationCap+5; i++ {
		h.Push(scene(fmt.Sprintf("s%d", i), 2))
	}
	if h.Len() != NavigationCap {
		t.Fatalf("expected len %d, got %d", NavigationCap, h.Len())
	}
	cur, ok := h.Current()
	if !ok || cur.ID != fmt.Sprintf("s%d", NavigationCap+4) {
		t.Fatalf("current should be the last pushed scene, got %q", cur.ID)
	}
	// oldest entries evicted
	if first := h.Scenes()[0]; first.ID != "s5" {
		t.Fatalf("expected oldest to be s5, got %q", first.ID)
	}
}

func TestNavigationHistoryRewindThenPush(t *testing.T) {
	h := NewNavigationHistory()
	for i := 0; i < 5; i++ {
		h.Push(scene(fmt.Sprintf("s%d", i), 2))
	}
	back, ok := h.Rewind(2)
	if !ok || back.ID != "s2" {
		t.Fatalf("rewind(2) should return s2, got %q ok=%v", back.ID, ok)
	}
	h.Push(scene("s9", 2))
	if h.Len() != 4 { // index+2
		t.Fatalf("expected len 4 after rewind(2)+push, got %d", h.Len())
	}
	scenes := h.Scenes()
	if scenes[2].ID != "s2" || scenes[3].ID != "s9" {
		t.Fatalf("last two should be s2,s9; got %q,%q", scenes[2].ID, scenes[3].ID)
	}
}

func TestNavigationHistoryRewindOutOfRange(t *testing.T) {
	h := NewNavigationHistory()
	h.Push(scene("s0", 1))
	if _, ok := h.Rewind(3); ok {
		t.Fatal("rewind past end must fail")
	}
	if _, ok := h.Rewind(-1); ok {
		t.Fatal("negative rewind must fail")
	}
}

func TestNavigationHistoryCanGoBack(t *testing.T) {
	h := NewNavigationHistory()
	if h.CanGoBack() {
		t.Fatal("empty history cannot go back")
	}
	h.Push(scene("s0", 1))
	if h.CanGoBack() {
		t.Fatal("single-entry history cannot go back")
	}
	h.Push(scene("s1", 1))
	if !h.CanGoBack() {
		t.Fatal("two entries should allow going back")
	}
}

func TestHistoryStoresCopies(t *testing.T) {
	h := NewNavigationHistory()
	s := scene("s0", 2)
	h.Push(s)
	s.Choices[0].Text = "mutated"
	cur, _ := h.Current()
	if cur.Choices[0].Text == "mutated" {
		t.Fatal("history must not alias the caller's choice slice")
	}
	cur.Choices[1].Text = "also mutated"
	again, _ := h.Current()
	if again.Choices[1].Text == "also mutated" {
		t.Fatal("Current must hand out a copy")
	}
}

func TestChoiceLogCapAndNoRewind(t *testing.T) {
	l := NewChoiceLog()
	for i := 0; i < ChoiceLogCap+7; i++ {
		l.Append(ChoiceRecord{SceneID: fmt.Sprintf("s%d", i), ChoiceID: "c"})
	}
	if l.Len() != ChoiceLogCap {
		t.Fatalf("expected len %d, got %d", ChoiceLogCap, l.Len())
	}
	if l.Records()[0].SceneID != "s7" {
		t.Fatalf("oldest record should be s7, got %q", l.Records()[0].SceneID)
	}
}
