// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"errors"
	"testing"
)

func TestIcon_Render_Plain(t *testing.T) {
	SetPlain(true)
	defer SetPlain(false)

	tests := []struct {
		icon Icon
		want string
	}{
		{IconSuccess, "✓"},
		{IconWarning, "⚠"},
		{IconError, "✗"},
		{IconArrow, "→"},
		{IconBullet, "•"},
	}
	for _, tt := range tests {
		if got := tt.icon.Render(); got != tt.want {
			t.Errorf("Icon(%q).Render() = %q, want %q", string(tt.icon), got, tt.want)
		}
	}
}

func TestSetPlain(t *testing.T) {
	SetPlain(true)
	if !Plain() {
		t.Error("Plain() = false after SetPlain(true)")
	}
	SetPlain(false)
	if Plain() {
		t.Error("Plain() = true after SetPlain(false)")
	}
}

func TestSpinner_StartStop(t *testing.T) {
	SetPlain(true)
	defer SetPlain(false)

	s := NewSpinner("working")
	s.Start()
	s.UpdateMessage("still working")
	s.Stop()

	// Stop again must not panic.
	s.Stop()
}

func TestSpinner_DoubleStart(t *testing.T) {
	SetPlain(true)
	defer SetPlain(false)

	s := NewSpinner("working")
	s.Start()
	s.Start()
	s.Stop()
}

func TestWithSpinner_Success(t *testing.T) {
	SetPlain(true)
	defer SetPlain(false)

	ran := false
	err := WithSpinner("task", func() error {
		ran = true
		return nil
	})
	if err != nil {
		t.Errorf("WithSpinner() error = %v", err)
	}
	if !ran {
		t.Error("fn was not called")
	}
}

func TestWithSpinner_Error(t *testing.T) {
	SetPlain(true)
	defer SetPlain(false)

	want := errors.New("boom")
	err := WithSpinner("task", func() error { return want })
	if !errors.Is(err, want) {
		t.Errorf("WithSpinner() error = %v, want %v", err, want)
	}
}
