package ocr

import (
	"context"
	"errors"
	"os/exec"
	"reflect"
	"testing"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/common"
)

type runnerCall struct {
	stdin []byte
	name  string
	args  []string
}

type stubRunner struct {
	calls  []runnerCall
	stdout map[string]string // keyed by first arg
	stderr string
	err    error
}

func (s *stubRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, []byte, error) {
	s.calls = append(s.calls, runnerCall{stdin: stdin, name: name, args: args})
	if s.err != nil {
		return nil, []byte(s.stderr), s.err
	}
	key := ""
	if len(args) > 0 {
		key = args[0]
	}
	return []byte(s.stdout[key]), []byte(s.stderr), nil
}

func TestTesseractRecognizeArgs(t *testing.T) {
	runner := &stubRunner{stdout: map[string]string{"stdin": "Last Name: Doe\n"}}
	engine := NewTesseract(TesseractConfig{Binary: "/usr/bin/tesseract", TessdataDir: "/data"}, runner, nil)

	text, err := engine.Recognize(context.Background(), []byte("png"), constants.ProfileSparse)
	if err != nil {
		t.Fatalf("Recognize returned error: %v", err)
	}
	if text != "Last Name: Doe\n" {
		t.Fatalf("unexpected text %q", text)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("expected one call, got %d", len(runner.calls))
	}
	call := runner.calls[0]
	want := []string{"stdin", "stdout", "--oem", "3", "--psm", "11", "-l", "eng", "--tessdata-dir", "/data"}
	if call.name != "/usr/bin/tesseract" || !reflect.DeepEqual(call.args, want) {
		t.Fatalf("unexpected invocation %s %v", call.name, call.args)
	}
	if string(call.stdin) != "png" {
		t.Fatalf("image not passed on stdin")
	}
}

func TestTesseractErrorClassification(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		stderr      string
		unavailable bool
	}{
		{"missing binary", &exec.Error{Name: "tesseract", Err: exec.ErrNotFound}, "", true},
		{"missing language", errors.New("exit status 1"), "Error opening data file /x/eng.traineddata\nFailed loading language 'eng'", true},
		{"engine failure", errors.New("exit status 1"), "Error in pixReadMem", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &stubRunner{err: tc.err, stderr: tc.stderr}
			engine := NewTesseract(TesseractConfig{Binary: "tesseract"}, runner, nil)
			_, err := engine.Recognize(context.Background(), nil, constants.ProfileBlock)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := IsUnavailable(err); got != tc.unavailable {
				t.Fatalf("IsUnavailable = %v, want %v (err=%v)", got, tc.unavailable, err)
			}
			if !tc.unavailable && !errors.Is(err, common.ErrExtractionFailed) {
				t.Fatalf("expected extraction failure, got %v", err)
			}
		})
	}
}

func TestTesseractWithoutBinaryIsUnavailable(t *testing.T) {
	engine := NewTesseract(TesseractConfig{}, &stubRunner{}, nil)
	if _, err := engine.Recognize(context.Background(), nil, constants.ProfileBlock); !IsUnavailable(err) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if err := engine.Probe(context.Background()); !IsUnavailable(err) {
		t.Fatalf("expected probe to report unavailable, got %v", err)
	}
	if info := engine.Info(context.Background()); info.Available || info.Error == "" {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestTesseractInfo(t *testing.T) {
	runner := &stubRunner{stdout: map[string]string{
		"--version":    "tesseract 5.3.0\n leptonica-1.82.0\n",
		"--list-langs": "List of available languages in \"/usr/share/tessdata/\" (2):\neng\nosd\n",
	}}
	engine := NewTesseract(TesseractConfig{Binary: "tesseract"}, runner, nil)

	info := engine.Info(context.Background())
	if !info.Available || info.Version != "tesseract 5.3.0" {
		t.Fatalf("unexpected info %+v", info)
	}
	if !reflect.DeepEqual(info.Languages, []string{"eng", "osd"}) {
		t.Fatalf("unexpected languages %v", info.Languages)
	}
}
