package clock

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSystemClock(t *testing.T) {
	prev := Config
	t.Cleanup(func() {
		Config = prev
	})
	Config.Host = ""

	res, err := Query()
	require.Nil(t, err)
	require.Nil(t, res)

	w := httptest.NewRecorder()
	apiClock(w, httptest.NewRequest("GET", "/api/clock", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"host":"","port":123,"result":null}`, w.Body.String())
}
