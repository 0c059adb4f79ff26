package components

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestRadioGroup_New(t *testing.T) {
	options := []RadioOption{
		{Label: "Option 1", Value: "opt1"},
		{Label: "Option 2", Value: "opt2"},
		{Label: "Option 3", Value: "opt3"},
	}

	r := NewRadioGroup(options)

	if r.Cursor() != 0 {
		t.Errorf("expected cursor at 0, got %d", r.Cursor())
	}
	if len(r.options) != 3 {
		t.Errorf("expected 3 options, got %d", len(r.options))
	}
}

func TestRadioGroup_Navigation(t *testing.T) {
	options := []RadioOption{
		{Label: "Option 1", Value: "opt1"},
		{Label: "Option 2", Value: "opt2"},
		{Label: "Option 3", Value: "opt3"},
	}

	r := NewRadioGroup(options)

	r, _ = r.Update(tea.KeyMsg{Type: tea.KeyDown})
	if r.Cursor() != 1 {
		t.Errorf("expected cursor at 1 after down, got %d", r.Cursor())
	}

	r, _ = r.Update(tea.KeyMsg{Type: tea.KeyDown})
	if r.Cursor() != 2 {
		t.Errorf("expected cursor at 2 after second down, got %d", r.Cursor())
	}

	// Down at the bottom wraps to the top.
	r, _ = r.Update(tea.KeyMsg{Type: tea.KeyDown})
	if r.Cursor() != 0 {
		t.Errorf("expected cursor to wrap to 0, got %d", r.Cursor())
	}

	// Up at the top wraps to the bottom.
	r, _ = r.Update(tea.KeyMsg{Type: tea.KeyUp})
	if r.Cursor() != 2 {
		t.Errorf("expected cursor to wrap to 2, got %d", r.Cursor())
	}
}

func TestRadioGroup_VimKeys(t *testing.T) {
	options := []RadioOption{
		{Label: "Option 1", Value: "opt1"},
		{Label: "Option 2", Value: "opt2"},
	}

	r := NewRadioGroup(options)

	r, _ = r.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	if r.Value() != "opt2" {
		t.Errorf("expected 'opt2' after j, got %q", r.Value())
	}

	r, _ = r.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	if r.Value() != "opt1" {
		t.Errorf("expected 'opt1' after k, got %q", r.Value())
	}
}

func TestRadioGroup_SetCursor(t *testing.T) {
	options := []RadioOption{
		{Label: "Option 1", Value: "opt1"},
		{Label: "Option 2", Value: "opt2"},
	}

	r := NewRadioGroup(options)

	r.SetCursor(1)
	if r.Value() != "opt2" {
		t.Errorf("expected 'opt2' after SetCursor(1), got %q", r.Value())
	}

	// Out-of-range indexes are ignored.
	r.SetCursor(5)
	if r.Cursor() != 1 {
		t.Errorf("expected cursor unchanged at 1, got %d", r.Cursor())
	}
	r.SetCursor(-1)
	if r.Cursor() != 1 {
		t.Errorf("expected cursor unchanged at 1, got %d", r.Cursor())
	}
}

func TestRadioGroup_View(t *testing.T) {
	options := []RadioOption{
		{Label: "First", Value: "first", Description: "the first option"},
		{Label: "Second", Value: "second"},
	}

	r := NewRadioGroup(options)
	view := r.View()

	if !strings.Contains(view, "First") {
		t.Error("expected view to contain 'First'")
	}
	if !strings.Contains(view, "Second") {
		t.Error("expected view to contain 'Second'")
	}
	if !strings.Contains(view, "the first option") {
		t.Error("expected view to contain the description")
	}
}

func TestRadioGroup_Empty(t *testing.T) {
	r := NewRadioGroup(nil)

	if r.Value() != "" {
		t.Errorf("expected empty value for empty group, got %q", r.Value())
	}
}
