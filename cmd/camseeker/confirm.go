package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/CZERTAINLY/camseeker/internal/model"
	"github.com/CZERTAINLY/camseeker/internal/service"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// confirm asks the operator on in whether to continue. A non interactive
// stdin is treated as no.
func confirm(in *os.File, out io.Writer) service.ConfirmFunc {
	return func(ctx context.Context, verdict model.CameraVerdict) bool {
		if !isatty.IsTerminal(in.Fd()) && !isatty.IsCygwinTerminal(in.Fd()) {
			return false
		}
		_, _ = color.New(color.FgYellow).Fprint(out, "No camera indicators found. Run extended checks anyway? [y/N] ")

		answer := make(chan string, 1)
		go func() {
			line, _ := bufio.NewReader(in).ReadString('\n')
			answer <- line
		}()
		select {
		case <-ctx.Done():
			return false
		case line := <-answer:
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "y", "yes":
				return true
			default:
				return false
			}
		}
	}
}
