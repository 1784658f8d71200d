package beeswax

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── Construction ─────────────────────────────────────────────────────────────

func TestNew_RequiresCredentials(t *testing.T) {
	cases := map[string]Credentials{
		"missing everything": {},
		"missing email":      {Password: testPassword},
		"missing password":   {Email: testEmail},
	}
	for name, creds := range cases {
		t.Run(name, func(t *testing.T) {
			c, err := New(Config{Creds: creds})
			require.ErrorIs(t, err, ErrMissingCredentials)
			assert.Nil(t, c)
		})
	}
}

func TestNew_DefaultsAPIRoot(t *testing.T) {
	c := newTestClient(t, "")
	assert.Equal(t, DefaultAPIRoot, c.APIRoot())

	c = newTestClient(t, "https://stinger.ut.api.beeswax.com")
	assert.Equal(t, "https://stinger.ut.api.beeswax.com", c.APIRoot())
}

func TestNew_BindsEveryResource(t *testing.T) {
	c := newTestClient(t, "")

	cases := []struct {
		res     *Resource
		name    string
		path    string
		idField string
	}{
		{c.Advertisers, "advertisers", "/rest/advertiser", "advertiser_id"},
		{c.Campaigns, "campaigns", "/rest/campaign", "campaign_id"},
		{c.Creatives, "creatives", "/rest/creative", "creative_id"},
		{c.LineItems, "line-items", "/rest/line_item", "line_item_id"},
		{c.CreativeLineItems, "creative-line-items", "/rest/creative_line_item", "cli_id"},
		{c.TargetingTemplates, "targeting-templates", "/rest/targeting_template", "targeting_template_id"},
	}
	for _, tc := range cases {
		require.NotNil(t, tc.res, tc.name)
		assert.Equal(t, tc.path, tc.res.Path())
		assert.Equal(t, tc.idField, tc.res.IDField())

		byName, ok := c.Resource(tc.name)
		require.True(t, ok, tc.name)
		assert.Same(t, tc.res, byName)
	}
	assert.Len(t, ResourceNames(), len(cases))

	_, ok := c.Resource("nope")
	assert.False(t, ok)
}

func TestNew_InstallsCookieJarOnCopy(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if handled, session := authenticated(w, r); !handled && !session {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false})
			return
		}
		writeJSON(w, http.StatusOK, envelope([]any{}))
	})
	supplied := &http.Client{Timeout: time.Second}
	c := newTestClient(t, api.srv.URL, WithHTTPClient(supplied))

	require.NoError(t, c.Authenticate(context.Background()))
	_, err := c.Request(context.Background(), http.MethodGet, RequestOptions{Path: "/rest/campaign"})
	require.NoError(t, err)

	assert.Nil(t, supplied.Jar, "caller's client must not be mutated")
	assert.Len(t, api.calls(http.MethodPost, authPath), 1, "session cookie kept across calls")
}

// ─── Authenticate ─────────────────────────────────────────────────────────────

func TestAuthenticate_PostsCredentialsAndKeepsSession(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if handled, _ := authenticated(w, r); handled {
			return
		}
		_, err := r.Cookie(sessionName)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false})
			return
		}
		writeJSON(w, http.StatusOK, envelope([]any{}))
	})
	c := newTestClient(t, api.srv.URL)

	require.NoError(t, c.Authenticate(context.Background()))

	auth := api.calls(http.MethodPost, authPath)
	require.Len(t, auth, 1)
	assert.Equal(t, map[string]any{
		"email":          testEmail,
		"password":       testPassword,
		"keep_logged_in": true,
	}, auth[0].Body)

	_, err := c.Request(context.Background(), http.MethodGet, RequestOptions{Path: "/rest/campaign"})
	require.NoError(t, err)
	assert.Len(t, api.calls(http.MethodPost, authPath), 1, "session cookie should be reused")
}

func TestAuthenticate_SuccessFalseIsFailure(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "bad creds"})
	})
	c := newTestClient(t, api.srv.URL)

	err := c.Authenticate(context.Background())
	var fe *FailureError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, string(fe.Body), "bad creds")
}

func TestAuthenticate_StatusError(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false})
	})
	c := newTestClient(t, api.srv.URL)

	err := c.Authenticate(context.Background())
	require.True(t, IsStatus(err, http.StatusBadRequest))
}

func TestAuthenticate_ConcurrentCallsShareOneRequest(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var count atomic.Int32

	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		once.Do(func() { close(started) })
		<-release
		authenticated(w, r)
	})
	c := newTestClient(t, api.srv.URL)

	const callers = 5
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() { errs <- c.Authenticate(context.Background()) }()
	}

	<-started
	time.Sleep(100 * time.Millisecond)
	close(release)

	for i := 0; i < callers; i++ {
		require.NoError(t, <-errs)
	}
	assert.EqualValues(t, 1, count.Load(), "expected exactly one login request")

	// The pending marker is cleared: a later call logs in again.
	require.NoError(t, c.Authenticate(context.Background()))
	assert.EqualValues(t, 2, count.Load())
}

func TestAuthenticate_FailureSharedByAllWaiters(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var count atomic.Int32

	api := newFakeAPI(t, func(w http.ResponseWriter, _ *http.Request) {
		count.Add(1)
		once.Do(func() { close(started) })
		<-release
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "locked out"})
	})
	c := newTestClient(t, api.srv.URL)

	const callers = 3
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() { errs <- c.Authenticate(context.Background()) }()
	}
	<-started
	time.Sleep(100 * time.Millisecond)
	close(release)

	var first error
	for i := 0; i < callers; i++ {
		err := <-errs
		var fe *FailureError
		require.ErrorAs(t, err, &fe)
		if first == nil {
			first = err
		}
		assert.Same(t, first, err, "all waiters observe the same outcome")
	}
	assert.EqualValues(t, 1, count.Load())
}

func TestAuthenticate_WaiterCanStopWaiting(t *testing.T) {
	release := make(chan struct{})
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		authenticated(w, r)
	})
	defer close(release)
	c := newTestClient(t, api.srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := c.Authenticate(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAuthenticate_LoginGivesUpAfterTimeout(t *testing.T) {
	prev := loginTimeout
	loginTimeout = 50 * time.Millisecond
	t.Cleanup(func() { loginTimeout = prev })

	api := newFakeAPI(t, func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	// No client timeout: only the login bound can end the request.
	c := newTestClient(t, api.srv.URL, WithHTTPClient(&http.Client{}))

	start := time.Now()
	err := c.Authenticate(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

// ─── Request ──────────────────────────────────────────────────────────────────

func TestRequest_ReauthenticatesOn401(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		handled, session := authenticated(w, r)
		switch {
		case handled:
		case !session:
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false})
		default:
			writeJSON(w, http.StatusOK, envelope([]any{map[string]any{"campaign_id": 1}}))
		}
	})
	c := newTestClient(t, api.srv.URL)

	body, err := c.Request(context.Background(), http.MethodGet, RequestOptions{
		Path: "/rest/campaign",
		Body: Entity{"campaign_id": 1},
	})
	require.NoError(t, err)

	list, err := body.Entities()
	require.NoError(t, err)
	assert.Equal(t, []Entity{{"campaign_id": float64(1)}}, list)

	gets := api.calls(http.MethodGet, "/rest/campaign")
	require.Len(t, gets, 2)
	assert.Equal(t, gets[0].Body, gets[1].Body, "retry must re-send the same body")
	assert.Len(t, api.calls(http.MethodPost, authPath), 1)
}

func TestRequest_Second401NotRetried(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if handled, _ := authenticated(w, r); handled {
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false})
	})
	c := newTestClient(t, api.srv.URL)

	_, err := c.Request(context.Background(), http.MethodGet, RequestOptions{Path: "/rest/campaign"})
	require.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.Len(t, api.calls(http.MethodGet, "/rest/campaign"), 2)
	assert.Len(t, api.calls(http.MethodPost, authPath), 1)
}

func TestRequest_AuthenticationFailurePropagates(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == authPath {
			writeJSON(w, http.StatusForbidden, map[string]any{"success": false, "message": "nope"})
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false})
	})
	c := newTestClient(t, api.srv.URL)

	_, err := c.Request(context.Background(), http.MethodGet, RequestOptions{Path: "/rest/campaign"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
	assert.Contains(t, se.URL, authPath)
	assert.Len(t, api.calls(http.MethodGet, "/rest/campaign"), 1, "no retry after a failed login")
}

func TestRequest_SuccessFalseRejected(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "I GOT A PROBLEM"})
	})
	c := newTestClient(t, api.srv.URL)

	_, err := c.Request(context.Background(), http.MethodGet, RequestOptions{Path: "/rest/campaign"})
	var fe *FailureError
	require.ErrorAs(t, err, &fe)
	assert.JSONEq(t, `{"success":false,"message":"I GOT A PROBLEM"}`, string(fe.Body))
}

func TestRequest_StatusErrorCarriesBody(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "boom"})
	})
	c := newTestClient(t, api.srv.URL)

	_, err := c.Request(context.Background(), http.MethodPost, RequestOptions{Path: "/rest/campaign/strict", Body: Entity{"a": 1}})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, http.MethodPost, se.Method)
	assert.Contains(t, string(se.ResponseBody()), "boom")
	assert.Len(t, api.all(), 1, "non-401 errors are not retried")
}

func TestRequest_TransportErrorPassesThrough(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1", WithHTTPClient(&http.Client{Timeout: time.Second}))

	_, err := c.Request(context.Background(), http.MethodGet, RequestOptions{Path: "/rest/campaign"})
	require.Error(t, err)
	var se *StatusError
	assert.False(t, errors.As(err, &se))
}

func TestRequest_ExplicitURL(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, envelope(map[string]any{"id": 7}))
	})
	c := newTestClient(t, "https://unused.example.com")

	body, err := c.Request(context.Background(), http.MethodGet, RequestOptions{URL: api.srv.URL + "/rest/custom"})
	require.NoError(t, err)
	id, err := body.ID()
	require.NoError(t, err)
	assert.EqualValues(t, 7, id)
	assert.Len(t, api.calls(http.MethodGet, "/rest/custom"), 1)
}

func TestRequest_RateLimited(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, envelope([]any{}))
	})
	c := newTestClient(t, api.srv.URL, WithRateLimit(1, 1))

	_, err := c.Request(context.Background(), http.MethodGet, RequestOptions{Path: "/rest/campaign"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Request(ctx, http.MethodGet, RequestOptions{Path: "/rest/campaign"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
	assert.Len(t, api.all(), 1)
}

func TestRequest_NonPositiveRateLimitDoesNotThrottle(t *testing.T) {
	for _, rps := range []int{0, -1} {
		api := newFakeAPI(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, envelope([]any{}))
		})
		c := newTestClient(t, api.srv.URL, WithRateLimit(rps, 1))

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		for i := 0; i < 5; i++ {
			_, err := c.Request(ctx, http.MethodGet, RequestOptions{Path: "/rest/campaign"})
			require.NoError(t, err, "rps=%d call %d", rps, i)
		}
		cancel()
		assert.Len(t, api.all(), 5)
	}
}
