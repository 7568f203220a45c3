package fakeapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// FailureType represents the type of failure to inject during request processing
type FailureType string

const (
	// FailureStatus answers with Status and an error body built from Detail and Code.
	FailureStatus FailureType = "status"
	// FailureDelay sleeps between MinDelay and MaxDelay before handling the request.
	FailureDelay FailureType = "delay"
	// FailureMalformedBody answers 200 with a body that is not valid JSON.
	FailureMalformedBody FailureType = "malformed_body"
	// FailureAbort closes the connection without answering.
	FailureAbort FailureType = "abort"
)

// RequestMatcher selects requests by method and route template. Empty fields
// match anything.
type RequestMatcher struct {
	Method string
	Route  string
}

func (m RequestMatcher) matches(method, route string) bool {
	return (m.Method == "" || m.Method == method) && (m.Route == "" || m.Route == route)
}

// FailureConfig describes how a matched request fails.
type FailureConfig struct {
	Type FailureType
	// Probability of triggering, from 0.0 to 1.0. Zero is treated as 1.0.
	Probability float64
	Status      int
	Detail      string
	Code        string
	MinDelay    time.Duration
	MaxDelay    time.Duration
	// Times limits how often the failure fires. Zero means unlimited.
	Times int
}

// Rule pairs a matcher with its failures.
type Rule struct {
	Matcher  RequestMatcher
	Failures []FailureConfig
	fired    []int
}

// MatchRoute creates a RequestMatcher for a method and route template.
func MatchRoute(method, route string) RequestMatcher {
	return RequestMatcher{Method: method, Route: route}
}

// AddRule adds a failure rule. Rules are matched in the order they were added.
func (s *Server) AddRule(matcher RequestMatcher, failures ...FailureConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, Rule{Matcher: matcher, Failures: failures, fired: make([]int, len(failures))})
}

// Fail makes every matching request answer with status and an error body.
// code may be empty.
func (s *Server) Fail(method, route string, status int, detail, code string) {
	s.AddRule(MatchRoute(method, route), FailureConfig{Type: FailureStatus, Status: status, Detail: detail, Code: code})
}

// FailOnce is Fail limited to the next matching request.
func (s *Server) FailOnce(method, route string, status int, detail, code string) {
	s.AddRule(MatchRoute(method, route), FailureConfig{Type: FailureStatus, Status: status, Detail: detail, Code: code, Times: 1})
}

// SetGlobalFailures sets failure configurations that apply to all requests.
// These are checked before rule-specific failures.
func (s *Server) SetGlobalFailures(failures []FailureConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globalFailures = failures
}

// ClearFailures removes every rule and global failure.
func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = nil
	s.globalFailures = nil
}

// pickFailures returns the failures that fire for this request.
func (s *Server) pickFailures(method, route string) []FailureConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []FailureConfig
	for _, f := range s.globalFailures {
		if shouldTriggerFailure(f.Probability) {
			out = append(out, f)
		}
	}
	for i := range s.rules {
		rule := &s.rules[i]
		if !rule.Matcher.matches(method, route) {
			continue
		}
		for j, f := range rule.Failures {
			if f.Times > 0 && rule.fired[j] >= f.Times {
				continue
			}
			if shouldTriggerFailure(f.Probability) {
				rule.fired[j]++
				out = append(out, f)
			}
		}
	}
	return out
}

// failureMiddleware records the request and applies matching failures. It
// runs after route matching so the route template is known.
func (s *Server) failureMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.record(r, route)

		for _, f := range s.pickFailures(r.Method, route) {
			switch f.Type {
			case FailureDelay:
				select {
				case <-time.After(randomDuration(f.MinDelay, f.MaxDelay)):
				case <-r.Context().Done():
					return
				}
			case FailureStatus:
				respondErrorCode(w, f.Status, f.Detail, f.Code)
				return
			case FailureMalformedBody:
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"id": `))
				return
			case FailureAbort:
				if hj, ok := w.(http.Hijacker); ok {
					if conn, _, err := hj.Hijack(); err == nil {
						_ = conn.Close()
						return
					}
				}
				panic(http.ErrAbortHandler)
			}
		}

		next.ServeHTTP(w, r)
	})
}

func shouldTriggerFailure(probability float64) bool {
	if probability <= 0 || probability >= 1 {
		return true
	}
	return cryptoRandFloat64() < probability
}

func randomDuration(dMin, dMax time.Duration) time.Duration {
	if dMin >= dMax {
		return dMin
	}
	return dMin + time.Duration(cryptoRandInt64(int64(dMax-dMin)))
}
