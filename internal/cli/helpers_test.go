package cli

import (
	"bytes"
	"image/color"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"github.com/roach88/snaptext/internal/store"
	"github.com/roach88/snaptext/internal/testutil"
)

// fakeClipboard records what was copied.
type fakeClipboard struct {
	mu     sync.Mutex
	copied []string
	err    error
}

func (c *fakeClipboard) WriteAll(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.copied = append(c.copied, text)
	return nil
}

func (c *fakeClipboard) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.copied) == 0 {
		return ""
	}
	return c.copied[len(c.copied)-1]
}

type testCLI struct {
	t         *testing.T
	dir       string
	env       map[string]string
	gateway   *testutil.ScriptedGateway
	clipboard *fakeClipboard
	ids       *testutil.SequenceIDGenerator
	clock     *testutil.DeterministicClock
}

func newTestCLI(t *testing.T) *testCLI {
	t.Helper()
	dir := t.TempDir()
	return &testCLI{
		t:   t,
		dir: dir,
		env: map[string]string{
			"SNAPTEXT_DATABASE":     filepath.Join(dir, "snaptext.db"),
			"SNAPTEXT_TESSDATA_DIR": filepath.Join(dir, "tessdata"),
			"SNAPTEXT_CAPTURE_DIR":  filepath.Join(dir, "captures"),
			"SNAPTEXT_LOG_LEVEL":    "warn",
		},
		gateway:   testutil.NewScriptedGateway(),
		clipboard: &fakeClipboard{},
		ids:       testutil.NewSequenceIDGenerator(""),
		clock:     testutil.NewDeterministicClock(),
	}
}

func (c *testCLI) lookupEnv(key string) (string, bool) {
	v, ok := c.env[key]
	return v, ok
}

type result struct {
	stdout string
	stderr string
	err    error
}

// run executes one command with stdin, sharing ids and clock across calls.
func (c *testCLI) run(stdin string, args ...string) result {
	c.t.Helper()
	opts := &RootOptions{
		Gateway:   c.gateway,
		Clipboard: c.clipboard,
		StoreOptions: []store.Option{
			store.WithClock(c.clock),
			store.WithIDGenerator(c.ids),
		},
		LookupEnv: c.lookupEnv,
	}

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewRootCommandWithOptions(opts)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// writeImage writes a noisy PNG so its encoded size is predictable-ish.
func (c *testCLI) writeImage(name string, w, h int) string {
	c.t.Helper()
	img := imaging.New(w, h, color.NRGBA{A: 255})
	rng := rand.New(rand.NewSource(int64(w*h + len(name))))
	for i := range img.Pix {
		if i%4 != 3 {
			img.Pix[i] = uint8(rng.Intn(256))
		}
	}
	path := filepath.Join(c.dir, name)
	require.NoError(c.t, imaging.Save(img, path))
	return path
}
