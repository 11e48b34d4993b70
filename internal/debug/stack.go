package debug

import (
	"bytes"
	"fmt"
	"net/http"
	"runtime"

	"github.com/streaminsync/streaminsync/internal/api"
)

func Init() {
	api.HandleFunc("api/stack", stackHandler)
}

// goroutines that live as long as the process
var stackSkip = [][]byte{
	[]byte("main.main()"),
	[]byte("created by os/signal.Notify"),
	[]byte("internal/debug.stackHandler"),

	[]byte("created by github.com/streaminsync/streaminsync/internal/api.serve"),
	[]byte("created by net/http.(*connReader).startBackgroundRead"),
	[]byte("created by net/http.(*Server).Serve"),

	// engine loops and ntp polling
	[]byte("created by github.com/streaminsync/streaminsync/pkg/engine.(*Engine).Start"),
	[]byte("created by github.com/streaminsync/streaminsync/pkg/ntp.NewClock"),
}

// stackHandler - goroutines left after skipping the long living ones,
// streaming goroutines of removed sessions must not be here
func stackHandler(w http.ResponseWriter, r *http.Request) {
	sep := []byte("\n\n")
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)

	items, skipped := filterStack(buf[:n], stackSkip)

	out := bytes.Join(items, sep)
	out = append(out, sep...)
	out = append(out, fmt.Sprintf("Total: %d, Skipped: %d", runtime.NumGoroutine(), skipped)...)

	api.Response(w, out, api.MimeText)
}

func filterStack(stack []byte, skip [][]byte) (items [][]byte, skipped int) {
next:
	for _, item := range bytes.Split(stack, []byte("\n\n")) {
		for _, s := range skip {
			if bytes.Contains(item, s) {
				skipped++
				continue next
			}
		}
		items = append(items, item)
	}
	return
}
