// Package cron holds cronhub's job model: schedules, jobs and their run-state.
//
// A Schedule is an immutable value describing when a job fires, either a
// standard 5-field cron expression evaluated in an IANA timezone or a fixed
// interval in milliseconds. NextAfter is a pure function of the schedule and
// its input instant; nothing in this package touches the store.
package cron
