package main

import "testing"

func TestViolationReason(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		importer string
		imported string
		want     bool
	}{
		{name: "contracts stay leaf", importer: "ex-sniper/pkg/sniper", imported: "ex-sniper/internal/cache", want: true},
		{name: "gateway through contracts", importer: "ex-sniper/internal/gateway", imported: "ex-sniper/pkg/sniper"},
		{name: "gateway to dispatch", importer: "ex-sniper/internal/gateway", imported: "ex-sniper/internal/dispatch", want: true},
		{name: "dispatch to discord convert", importer: "ex-sniper/internal/dispatch", imported: "ex-sniper/internal/discord"},
		{name: "command to session", importer: "ex-sniper/internal/command", imported: "ex-sniper/internal/session", want: true},
		{name: "command to bump", importer: "ex-sniper/internal/command", imported: "ex-sniper/internal/bump"},
		{name: "store to transport", importer: "ex-sniper/internal/settings", imported: "ex-sniper/internal/discord", want: true},
		{name: "store test variant", importer: "ex-sniper/internal/bump [ex-sniper/internal/bump.test]", imported: "ex-sniper/internal/gateway", want: true},
		{name: "store to docstore", importer: "ex-sniper/internal/spy", imported: "ex-sniper/internal/docstore"},
		{name: "session wires everything", importer: "ex-sniper/internal/session", imported: "ex-sniper/internal/gateway"},
		{name: "cmd wires everything", importer: "ex-sniper/cmd/sniper", imported: "ex-sniper/internal/dispatch"},
		{name: "internal to cmd", importer: "ex-sniper/internal/session", imported: "ex-sniper/cmd/sniper", want: true},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got := violationReason(testCase.importer, testCase.imported)
			if (got != "") != testCase.want {
				t.Fatalf("violationReason(%q, %q) = %q, want violation %v", testCase.importer, testCase.imported, got, testCase.want)
			}
		})
	}
}
