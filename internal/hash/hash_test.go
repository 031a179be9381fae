package hash

import (
	"bytes"
	"strings"
	"testing"
)

func TestFull(t *testing.T) {
	// sha256("hello world")
	const want = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	got, err := Full(strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("Full() error = %v", err)
	}
	if got != want {
		t.Errorf("Full() = %s, want %s", got, want)
	}
}

func TestQuickEqualsFullForSmallInputs(t *testing.T) {
	input := []byte("well under a megabyte")
	quick, err := Quick(bytes.NewReader(input))
	if err != nil {
		t.Fatalf("Quick() error = %v", err)
	}
	full, err := Full(bytes.NewReader(input))
	if err != nil {
		t.Fatalf("Full() error = %v", err)
	}
	if quick != full {
		t.Errorf("Quick = %s, Full = %s, want equal for small inputs", quick, full)
	}
}

func TestQuickIgnoresTrailingBytes(t *testing.T) {
	head := bytes.Repeat([]byte("a"), QuickWindow)
	one := append(append([]byte{}, head...), []byte("tail one")...)
	two := append(append([]byte{}, head...), []byte("a different tail")...)

	qOne, err := Quick(bytes.NewReader(one))
	if err != nil {
		t.Fatal(err)
	}
	qTwo, err := Quick(bytes.NewReader(two))
	if err != nil {
		t.Fatal(err)
	}
	if qOne != qTwo {
		t.Error("quick hashes differ though the leading window is identical")
	}

	fOne, err := Full(bytes.NewReader(one))
	if err != nil {
		t.Fatal(err)
	}
	fTwo, err := Full(bytes.NewReader(two))
	if err != nil {
		t.Fatal(err)
	}
	if fOne == fTwo {
		t.Error("full hashes collide for different content")
	}
}
