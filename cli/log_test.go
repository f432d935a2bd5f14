package cli

import "testing"

func TestLogConfigScan(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantLevel  logLevel
		wantFormat logFormat
		wantPretty bool
		wantCaller bool
	}{
		{
			name:       "separate values",
			args:       []string{"--log-level", "debug", "eval", "--log-format", "json"},
			wantLevel:  "debug",
			wantFormat: "json",
			wantPretty: true,
		},
		{
			name:       "assigned values",
			args:       []string{"--log-level=warn", "--log-caller", "--log-pretty=false"},
			wantLevel:  "warn",
			wantCaller: true,
		},
		{
			name:       "negated",
			args:       []string{"--no-log-pretty", "--no-log-caller=false"},
			wantCaller: true,
		},
		{
			name:       "flag value not consumed",
			args:       []string{"--log-level", "--data", "x.csv"},
			wantPretty: true,
		},
		{
			name:       "unrelated flags",
			args:       []string{"--data=log-level", "-v", "x=1"},
			wantPretty: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := logConfig{Pretty: true}
			f.scan(tt.args)

			if f.Level != tt.wantLevel || f.Format != tt.wantFormat ||
				f.Pretty != tt.wantPretty || f.Caller != tt.wantCaller {
				t.Errorf("scan(%q) = %+v", tt.args, f)
			}
		})
	}
}
