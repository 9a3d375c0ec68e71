package ingest

import (
	"reflect"
	"testing"
)

func TestSortPDFsByNumber(t *testing.T) {
	in := []string{
		"scans/book-10.pdf",
		"scans/book-2.pdf",
		"scans/book-1.pdf",
		"scans/preface.pdf",
	}
	want := []string{
		"scans/preface.pdf",
		"scans/book-1.pdf",
		"scans/book-2.pdf",
		"scans/book-10.pdf",
	}
	got := sortPDFsByNumber(in)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	// The input slice is not mutated.
	if in[0] != "scans/book-10.pdf" {
		t.Error("input slice was reordered in place")
	}
}

func TestPageFileName(t *testing.T) {
	if got := pageFileName(7); got != "page_0007.png" {
		t.Errorf("got %q", got)
	}
	if got := pageFileName(1234); got != "page_1234.png" {
		t.Errorf("got %q", got)
	}
}
