package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assembly-ledger/pkg/domain"
	"assembly-ledger/pkg/ledger"
)

const firstSession = `<html><body>
<h1>Seduta n. 219</h1>
<p>RESOCONTO DELLA SEDUTA DEL 10 DICEMBRE 2025</p>
<a href="/docs/ODG_PDF/219.pdf">Ordine del giorno</a>
<div class="video_box" data-src="/video/2484769">Video dalle 11:30</div>
<div class="video_box" data-src="/video/2484770">Video dalle 9:05</div>
<div class="next_link"><a href="/seduta-numero-220-del-16122025">Seduta successiva</a></div>
</body></html>`

const secondSession = `<html><body>
<h1>Seduta n. 220</h1>
<p>RESOCONTO DELLA SEDUTA DEL 16 DICEMBRE 2025</p>
<div class="video_box" data-src="/video/2484801">Video dalle 10:00</div>
</body></html>`

const listing = `<html><body>
<a href="/seduta-numero-219-del-10122025">Seduta 219</a>
<a href="/seduta-numero-220-del-16122025">Seduta 220</a>
</body></html>`

type cliEnv struct {
	server     *httptest.Server
	configPath string
	ledgerPath string
}

func setupCLI(t *testing.T, withStartURL bool) *cliEnv {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/seduta-numero-219-del-10122025", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, firstSession)
	})
	mux.HandleFunc("/seduta-numero-220-del-16122025", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, secondSession)
	})
	mux.HandleFunc("/agenda/lavori-aula", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listing)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	env := &cliEnv{
		server:     srv,
		configPath: filepath.Join(dir, "config.yaml"),
		ledgerPath: filepath.Join(dir, "data", "ledger.csv"),
	}

	startURL := ""
	if withStartURL {
		startURL = srv.URL + "/seduta-numero-219-del-10122025"
	}
	body := fmt.Sprintf(`
ledger:
  path: %s
crawl:
  start_url: %q
  listing_url: %s/agenda/lavori-aula
  delay: 0s
http:
  retries: 0
logging:
  level: error
`, env.ledgerPath, startURL, srv.URL)
	require.NoError(t, os.WriteFile(env.configPath, []byte(body), 0o600))
	return env
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *cliEnv) store(t *testing.T) *ledger.Store {
	t.Helper()
	store, err := ledger.Open(e.ledgerPath)
	require.NoError(t, err)
	return store
}

func TestCrawlPendingPublishStats(t *testing.T) {
	env := setupCLI(t, true)

	out, err := env.run(t, "crawl")
	require.NoError(t, err)
	assert.Contains(t, out, "new")
	assert.Equal(t, 3, env.store(t).Stats().Total)

	out, err = env.run(t, "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "Pending (3)")
	assert.Contains(t, out, "09:05")

	out, err = env.run(t, "publish", "--session", "219", "--date", "2025-12-10", "--time", "09:05", "--external-id", "yt-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated 219@2025-12-10 09:05")

	st := env.store(t).Stats()
	assert.Equal(t, 1, st.Published)
	assert.Equal(t, 1, st.Success)
	assert.Equal(t, 2, st.Unpublished)

	out, err = env.run(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Published")

	// a second crawl changes nothing and keeps the published id
	_, err = env.run(t, "crawl")
	require.NoError(t, err)
	index := env.store(t).PreservedFields("219")
	assert.Equal(t, "yt-1", index[domain.Slot{Date: "2025-12-10", Time: "09:05"}].ExternalID)
	assert.Equal(t, 3, env.store(t).Stats().Total)
}

func TestCrawl_DiscoversLatestSessionFromListing(t *testing.T) {
	env := setupCLI(t, false)

	_, err := env.run(t, "crawl")
	require.NoError(t, err)

	index := env.store(t).IndexBySession()
	require.Len(t, index, 1)
	assert.Equal(t, 1, index["220"].Count)
}

func TestCrawl_MinDateFlag(t *testing.T) {
	env := setupCLI(t, true)

	_, err := env.run(t, "crawl", "--min-date", "2025-12-15")
	require.NoError(t, err)

	index := env.store(t).IndexBySession()
	assert.NotContains(t, index, "219")
	assert.Contains(t, index, "220")

	_, err = env.run(t, "crawl", "--min-date", "15/12/2025")
	require.Error(t, err)
}

func TestCrawl_RefusesConcurrentRun(t *testing.T) {
	env := setupCLI(t, true)

	lock, err := ledger.AcquireRunLock(env.ledgerPath)
	require.NoError(t, err)
	defer lock.Release()

	_, err = env.run(t, "crawl")
	require.ErrorIs(t, err, ledger.ErrLocked)

	_, err = env.run(t, "publish", "--session", "219", "--date", "2025-12-10", "--time", "09:05", "--external-id", "yt-1")
	require.ErrorIs(t, err, ledger.ErrLocked)
}

func TestPublish_Validation(t *testing.T) {
	env := setupCLI(t, true)
	_, err := env.run(t, "crawl")
	require.NoError(t, err)

	_, err = env.run(t, "publish", "--session", "219")
	require.Error(t, err)

	_, err = env.run(t, "publish", "--session", "219", "--date", "2025-12-10", "--time", "09:05")
	require.Error(t, err, "success requires an external id")

	_, err = env.run(t, "publish", "--session", "219", "--date", "2025-12-10", "--time", "09:05", "--status", "bogus")
	require.Error(t, err)

	_, err = env.run(t, "publish", "--session", "999", "--date", "2025-12-10", "--time", "09:05", "--external-id", "x")
	require.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = env.run(t, "publish", "--session", "219", "--date", "2025-12-10", "--time", "11:30",
		"--status", "failed", "--reason", "quota exceeded", "--checked-at", "2025-12-12 08:00:00")
	require.NoError(t, err)
	for _, rec := range env.store(t).LoadAll() {
		if rec.VideoTime == "11:30" {
			assert.Equal(t, domain.StatusFailed, rec.Status)
			assert.Equal(t, "quota exceeded", rec.FailureReason)
			assert.Equal(t, "2025-12-12T08:00:00Z", rec.LastCheck)
			assert.Empty(t, rec.ExternalID)
		}
	}
}

func TestPending_Empty(t *testing.T) {
	env := setupCLI(t, true)

	out, err := env.run(t, "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "No pending videos.")
}

func TestMirror_RequiresATarget(t *testing.T) {
	env := setupCLI(t, true)

	_, err := env.run(t, "mirror")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no mirror configured")
}

func TestMirror_SupabaseNeedsCredentials(t *testing.T) {
	env := setupCLI(t, true)
	t.Setenv("MIRROR_SUPABASE_URL", "https://abc.supabase.co")

	_, err := env.run(t, "mirror")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mirror.supabase_db_password")
}

func TestConfig_BadLogLevelFlag(t *testing.T) {
	env := setupCLI(t, true)

	_, err := env.run(t, "--log-level", "loud", "stats")
	require.Error(t, err)
}
