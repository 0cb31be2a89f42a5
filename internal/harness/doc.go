// Package harness runs UI-driven scenarios against a target application and
// asserts on what it renders.
//
// # Suite Format
//
// Suites are YAML (or CUE) files:
//
//	name: terminal
//	description: "Console feature of the IDE"
//	target:
//	  driver: browser
//	  url: http://127.0.0.1:8080
//	  wait_timeout: 10s
//	reset_between: false
//	timeout: 5m
//	scenarios:
//	  - name: simple console command
//	    steps:
//	      - wait_visible: { selector: '*[data-id="terminalCli"]', timeout: 10s }
//	      - execute_script: "console.log(1 + 1)"
//	      - wait_text_equals:
//	          selector: '*[data-id="terminalJournal"] > div:last-child'
//	          expected: "2"
//
// Each step is a mapping with exactly one key naming the action:
//
//   - click, send_keys, execute_script
//   - wait_visible, assert_visible
//   - assert_text_equals, assert_text_contains
//   - wait_text_equals, wait_text_contains (poll until match or timeout)
//   - pause (fixed delay; Lint flags it)
//   - open_file, add_file
//
// Durations are Go duration strings ("5s") or integer milliseconds.
//
// # Execution
//
// Scenarios run sequentially on one target session and steps run strictly
// in order. The first failing step ends its scenario; the next scenario
// still runs. Losing the target connection stops the run, as does
// cancelling the context; scenarios that did not run are reported as
// skipped rather than failed.
//
// # Error Kinds
//
//   - ELEMENT_NOT_FOUND: a locator did not resolve in time
//   - ASSERTION_FAILED: captured output did not match
//   - SCRIPT_ERROR: the console rejected input
//   - HARNESS_FAULT: the driver failed while reading (e.g. stale element)
//   - CONNECTION_LOST: the session is gone (run-fatal)
//   - ABORTED: the run was cancelled mid-step
package harness
