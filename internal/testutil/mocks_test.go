package testutil_test

// Note: The mocks in mocks.go follow the standard testify/mock pattern and
// hold no logic of their own beyond recording calls and returning configured
// values, so they are not unit tested here.
//
// Their correctness is exercised by the tests of the components that consume
// them (e.g., injecting MockResolver or MockHooks into the engine and
// asserting on the recorded interactions).
