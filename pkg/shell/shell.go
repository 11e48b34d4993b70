package shell

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"unicode"
)

// QuoteSplit - command line to args. Quotes keep spaces and can be a part
// of a word: `-metadata title="a b"` gives "-metadata", "title=a b".
// Nil on an unclosed quote.
func QuoteSplit(s string) []string {
	var args []string
	var word strings.Builder
	var quote rune
	var inWord bool

	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				word.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inWord = true
		case unicode.IsSpace(r):
			if inWord {
				args = append(args, word.String())
				word.Reset()
				inWord = false
			}
		default:
			word.WriteRune(r)
			inWord = true
		}
	}

	if quote != 0 {
		return nil
	}
	if inWord {
		args = append(args, word.String())
	}
	return args
}

// WaitSignal blocks until SIGINT or SIGTERM, nil when ctx is done first
func WaitSignal(ctx context.Context) os.Signal {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case sig := <-sigs:
		return sig
	case <-ctx.Done():
		return nil
	}
}
