package pm

import (
	"context"
	stderrors "errors"
	"reflect"
	"testing"

	"github.com/matzehuels/npmunifier/pkg/errors"
	"github.com/matzehuels/npmunifier/pkg/runner"
)

// recordingRunner captures invocations instead of spawning processes.
type recordingRunner struct {
	calls    []runner.Invocation
	detached []runner.Invocation
	code     int
}

func (r *recordingRunner) Run(ctx context.Context, inv runner.Invocation) (int, error) {
	r.calls = append(r.calls, inv)
	return r.code, nil
}

func (r *recordingRunner) Start(ctx context.Context, inv runner.Invocation) (*runner.Handle, error) {
	r.detached = append(r.detached, inv)
	return nil, nil
}

func newTestManager(t *testing.T, v Variant) (*Manager, *recordingRunner) {
	t.Helper()
	rec := &recordingRunner{}
	m, err := New(v, Dir("/project"), WithRunner(rec))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return m, rec
}

func TestEveryRegisteredCommandDispatches(t *testing.T) {
	for _, v := range Builtins() {
		for _, name := range v.Commands {
			t.Run(v.Name+"/"+name, func(t *testing.T) {
				m, rec := newTestManager(t, v)
				if _, err := m.Run(context.Background(), name, "arg"); err != nil {
					t.Fatalf("Run(%q) error: %v", name, err)
				}
				if len(rec.calls) != 1 {
					t.Fatalf("runner called %d times, want 1", len(rec.calls))
				}

				inv := rec.calls[0]
				wantToken := name
				if tok, ok := v.Overrides[name]; ok {
					wantToken = tok
				}
				if inv.Command != wantToken {
					t.Errorf("token = %q, want %q", inv.Command, wantToken)
				}
				if inv.Bin != v.Bin {
					t.Errorf("bin = %q, want %q", inv.Bin, v.Bin)
				}
				if inv.Dir != "/project" {
					t.Errorf("dir = %q, want /project", inv.Dir)
				}
			})
		}
	}
}

func TestUnregisteredCommandSpawnsNothing(t *testing.T) {
	tests := []struct {
		variant Variant
		command string
	}{
		{NPM(), "add"},
		{NPM(), "upgrade"},
		{PNPM(), "upgrade"},
		{Yarn(), "update"},
		{Yarn(), "uninstall"},
		{Yarn(), "prune"},
		{NPM(), "publish"},
	}

	for _, tt := range tests {
		t.Run(tt.variant.Name+"/"+tt.command, func(t *testing.T) {
			m, rec := newTestManager(t, tt.variant)

			_, err := m.Run(context.Background(), tt.command)
			if !errors.Is(err, errors.ErrCodeUnsupportedCommand) {
				t.Fatalf("Run error = %v, want %s", err, errors.ErrCodeUnsupportedCommand)
			}
			var uc *errors.UnsupportedCommandError
			if !stderrors.As(err, &uc) {
				t.Fatal("error should be *UnsupportedCommandError")
			}
			if uc.Manager != tt.variant.Name || uc.Command != tt.command {
				t.Errorf("error = %+v", uc)
			}

			if _, err := m.Start(context.Background(), tt.command); !errors.Is(err, errors.ErrCodeUnsupportedCommand) {
				t.Errorf("Start error = %v, want %s", err, errors.ErrCodeUnsupportedCommand)
			}
			if len(rec.calls)+len(rec.detached) != 0 {
				t.Errorf("runner was called for unsupported command")
			}
		})
	}
}

func TestYarnInstallIsBare(t *testing.T) {
	m, rec := newTestManager(t, Yarn())

	if _, err := m.Run(context.Background(), "install", "--frozen-lockfile"); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	want := []string{"yarn", "--frozen-lockfile"}
	if got := rec.calls[0].Argv(); !reflect.DeepEqual(got, want) {
		t.Errorf("argv = %v, want %v", got, want)
	}
}

func TestPNPMRunScriptUnderscore(t *testing.T) {
	m, rec := newTestManager(t, PNPM())

	if _, err := m.Run(context.Background(), "run_script", "build"); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	want := []string{"pnpm", "run-script", "build"}
	if got := rec.calls[0].Argv(); !reflect.DeepEqual(got, want) {
		t.Errorf("argv = %v, want %v", got, want)
	}
}

func TestStartForwardsToRunner(t *testing.T) {
	m, rec := newTestManager(t, NPM())

	if _, err := m.Start(context.Background(), "test", "--watch"); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if len(rec.detached) != 1 {
		t.Fatalf("detached calls = %d, want 1", len(rec.detached))
	}
	want := []string{"npm", "test", "--watch"}
	if got := rec.detached[0].Argv(); !reflect.DeepEqual(got, want) {
		t.Errorf("argv = %v, want %v", got, want)
	}
}

func TestNonzeroExitIsNotAnError(t *testing.T) {
	m, rec := newTestManager(t, NPM())
	rec.code = 1

	code, err := m.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if code != 1 {
		t.Errorf("code = %d, want 1", code)
	}
}

func TestCommandBinding(t *testing.T) {
	m, rec := newTestManager(t, Yarn())

	cmd, err := m.Command("run_script")
	if err != nil {
		t.Fatalf("Command error: %v", err)
	}
	if cmd.Name != "run-script" || cmd.Token != "run-script" {
		t.Errorf("Command = %+v", cmd)
	}

	if _, err := cmd.Run(context.Background(), "lint"); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got := rec.calls[0].Args; !reflect.DeepEqual(got, []string{"lint"}) {
		t.Errorf("args = %v, want [lint]", got)
	}
}

func TestWithBinOverride(t *testing.T) {
	m, rec := newTestManager(t, NPM().WithBin("npm.cmd"))

	if _, err := m.Run(context.Background(), "install"); err != nil {
		t.Fatal(err)
	}
	if rec.calls[0].Bin != "npm.cmd" {
		t.Errorf("bin = %q, want npm.cmd", rec.calls[0].Bin)
	}
}

func TestNewLocatorError(t *testing.T) {
	want := errors.New(errors.ErrCodeNotADirectory, "nope")
	_, err := New(NPM(), failingLocator{want})
	if !errors.Is(err, errors.ErrCodeNotADirectory) {
		t.Fatalf("New error = %v, want %s", err, errors.ErrCodeNotADirectory)
	}
}

func TestNewRequiresBin(t *testing.T) {
	_, err := New(Variant{Name: "empty"}, Dir("."))
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("New error = %v, want %s", err, errors.ErrCodeInvalidInput)
	}
}

type failingLocator struct{ err error }

func (f failingLocator) Dir() (string, error) { return "", f.err }
