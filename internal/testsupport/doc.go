// Package testsupport provides shared fixtures for pipeline tests: tiny
// animated GIFs, per-test configurations, and a scriptable engine backend.
package testsupport
