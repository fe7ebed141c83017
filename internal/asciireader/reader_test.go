package asciireader

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/hklreduce/hklreduce/internal/xerr"
)

func syntheticNumor(t *testing.T, nbang, nkmes int, npoints int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(strings.Repeat("R", 80) + "\n")
	b.WriteString("12345678 0001\n")
	b.WriteString("D19 guest localcontact 31-Jul-2026 12:00:00\n")

	ints := make([]int, 30)
	ints[4] = nbang
	ints[5] = nkmes
	for row := 0; row < 3; row++ {
		parts := make([]string, 10)
		for j := 0; j < 10; j++ {
			parts[j] = strconv.Itoa(ints[row*10+j])
		}
		b.WriteString(strings.Join(parts, " ") + "\n")
	}

	b.WriteString("1.0 0.0 0.0 0.0 0.0\n")

	for f := 0; f < npoints; f++ {
		b.WriteString("1 2 3 4 5 6\n")
		for i := 0; i < 1024; i++ {
			if i%16 == 15 {
				b.WriteString("0\n")
			} else {
				b.WriteString("0 ")
			}
		}
	}
	return b.String()
}

func TestReadSyntheticNumor(t *testing.T) {
	text := syntheticNumor(t, 1, 2, 2)
	n, err := Read(strings.NewReader(text), 32, 32, 1)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n.Header.Numor != 12345678 {
		t.Fatalf("Numor = %d, want 12345678", n.Header.Numor)
	}
	if len(n.Frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(n.Frames))
	}
	for _, f := range n.Frames {
		if len(f.Counts) != 1024 {
			t.Fatalf("expected 1024 counts per frame, got %d", len(f.Counts))
		}
	}
}

func TestReadRejectsAxisCountMismatch(t *testing.T) {
	text := syntheticNumor(t, 1, 2, 2)
	_, err := Read(strings.NewReader(text), 32, 32, 4)
	if !errors.Is(err, xerr.InvalidInput) {
		t.Fatalf("expected xerr.InvalidInput, got %v", err)
	}
}

func TestReadRejectsMissingBanner(t *testing.T) {
	_, err := Read(strings.NewReader("not a banner\n"), 32, 32, 1)
	if err == nil {
		t.Fatal("expected error for missing banner")
	}
}
