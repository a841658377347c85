package config

import (
	"errors"
	"testing"

	"github.com/shlokhq/versecoach/pkg/provider/stt"
	sttmock "github.com/shlokhq/versecoach/pkg/provider/stt/mock"
	"github.com/shlokhq/versecoach/pkg/provider/tts"
	ttsmock "github.com/shlokhq/versecoach/pkg/provider/tts/mock"
)

func TestRegistry_STT(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()

	var gotEntry ProviderEntry
	reg.RegisterSTT("mock", func(e ProviderEntry) (stt.Transcriber, error) {
		gotEntry = e
		return sttmock.New(), nil
	})

	entry := ProviderEntry{Name: "mock", Model: "small"}
	p, err := reg.CreateSTT(entry)
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if p == nil {
		t.Fatal("CreateSTT returned nil provider")
	}
	if gotEntry.Model != "small" {
		t.Errorf("factory got entry %+v", gotEntry)
	}
}

func TestRegistry_TTS(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	reg.RegisterTTS("mock", func(ProviderEntry) (tts.Provider, error) {
		return ttsmock.New(), nil
	})

	if _, err := reg.CreateTTS(ProviderEntry{Name: "mock"}); err != nil {
		t.Fatalf("CreateTTS: %v", err)
	}
}

func TestRegistry_NotRegistered(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()

	if _, err := reg.CreateSTT(ProviderEntry{Name: "ghost"}); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("CreateSTT err = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := reg.CreateTTS(ProviderEntry{Name: "ghost"}); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("CreateTTS err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_Overwrite(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()

	first := sttmock.New()
	second := sttmock.New()
	reg.RegisterSTT("mock", func(ProviderEntry) (stt.Transcriber, error) { return first, nil })
	reg.RegisterSTT("mock", func(ProviderEntry) (stt.Transcriber, error) { return second, nil })

	p, err := reg.CreateSTT(ProviderEntry{Name: "mock"})
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if p != second {
		t.Error("later registration did not overwrite the earlier one")
	}
}
