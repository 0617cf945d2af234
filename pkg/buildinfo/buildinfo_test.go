/*
Copyright 2014 The Camlistore Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package buildinfo

import "testing"

func TestTestingLinked(t *testing.T) {
	if !TestingLinked() {
		t.Error("TestingLinked() = false; want true when running under `go test`")
	}
}

func TestSummaryFallsBackToUnknown(t *testing.T) {
	oldVersion, oldGit := Version, GitInfo
	Version, GitInfo = "", ""
	defer func() { Version, GitInfo = oldVersion, oldGit }()
	if Summary() != "unknown" {
		t.Errorf("Summary() = %q; want \"unknown\"", Summary())
	}
	Version = "1.0"
	if Summary() != "1.0" {
		t.Errorf("Summary() = %q; want \"1.0\"", Summary())
	}
	GitInfo = "abc123"
	if Summary() != "1.0, abc123" {
		t.Errorf("Summary() = %q; want \"1.0, abc123\"", Summary())
	}
}
