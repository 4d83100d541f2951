// Package cli содержит общее для команд клиента: собранный App,
// формат вывода и разбор флагов.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/exp/slog"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"pharmasync/internal/app/client"
)

type Format int

const (
	FormatText Format = iota
	FormatJSON
	FormatYAML
)

var ErrNoApp = errors.New("client is not initialized")

// Env кладется в контекст команды корневой командой.
type Env struct {
	App    *client.App
	Log    *slog.Logger
	Format Format
	Out    io.Writer
}

type envKey struct{}

func WithEnv(ctx context.Context, env *Env) context.Context {
	return context.WithValue(ctx, envKey{}, env)
}

func FromContext(ctx context.Context) (*Env, error) {
	env, ok := ctx.Value(envKey{}).(*Env)
	if !ok || env == nil || env.App == nil {
		return nil, ErrNoApp
	}
	return env, nil
}

// Print пишет v в JSON или YAML, либо вызывает text для текстового формата.
func (e *Env) Print(v any, text func(w io.Writer)) error {
	switch e.Format {
	case FormatJSON:
		enc := json.NewEncoder(e.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(e.Out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		text(e.Out)
		return nil
	}
}

// Interactive проверяет, можно ли рисовать прогресс.
func (e *Env) Interactive() bool {
	return e.Format == FormatText && IsTerminal(e.Out)
}

func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// SetupColor отключает цвет для пайпов и машиночитаемого вывода.
func SetupColor(out io.Writer, format Format) {
	if format != FormatText || !IsTerminal(out) {
		color.NoColor = true
	}
}

var (
	OK   = color.New(color.FgGreen).SprintFunc()
	Warn = color.New(color.FgYellow).SprintFunc()
	Fail = color.New(color.FgRed).SprintFunc()
	Dim  = color.New(color.Faint).SprintFunc()
	Bold = color.New(color.Bold).SprintFunc()
)

// Successf печатает зеленую строку подтверждения.
func (e *Env) Successf(format string, args ...any) {
	if e.Format != FormatText {
		return
	}
	fmt.Fprintln(e.Out, OK("✓"), fmt.Sprintf(format, args...))
}
