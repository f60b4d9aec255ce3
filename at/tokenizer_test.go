package at_test

import (
	"bufio"
	"strings"
	"testing"

	"i4.energy/across/sim800gw/at"
)

func TestSplitter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "Registration query with echo",
			input:    "AT+CREG?\r\n+CREG: 0,1\r\nOK\r\n",
			expected: []string{"AT+CREG?", "+CREG: 0,1", "OK"},
		},
		{
			name:     "Command with error",
			input:    "AT+HTTPINIT\r\n+CME ERROR: 3\r\n",
			expected: []string{"AT+HTTPINIT", "+CME ERROR: 3"},
		},
		{
			name:     "Socket send sequence",
			input:    "AT+CIPSEND=0,5\r\n> hello\r\nDATA ACCEPT: 0,5\r\n",
			expected: []string{"AT+CIPSEND=0,5", "> ", "hello", "DATA ACCEPT: 0,5"},
		},
		{
			name:     "URC mixed with response",
			input:    "AT+CGATT?\r\n+PDP: DEACT\r\n+CGATT: 0\r\nOK\r\n",
			expected: []string{"AT+CGATT?", "+PDP: DEACT", "+CGATT: 0", "OK"},
		},
		{
			name:     "Prompt only",
			input:    "> ",
			expected: []string{"> "},
		},
		{
			name:     "Empty lines handling",
			input:    "\r\n\r\nAT\r\nOK\r\n\r\n",
			expected: []string{"", "", "AT", "OK", ""},
		},
		{
			name:     "Incomplete response at EOF",
			input:    "AT+HTTPACTION=0\r\nOK\r\n+HTTPACTION: 0,200",
			expected: []string{"AT+HTTPACTION=0", "OK", "+HTTPACTION: 0,200"},
		},
		{
			name:     "Command without CRLF at EOF",
			input:    "AT+GSN",
			expected: []string{"AT+GSN"},
		},
		{
			name:     "Partial prompt at EOF",
			input:    "AT+CIPSEND=0,5\r\n>",
			expected: []string{"AT+CIPSEND=0,5", ">"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tokens []string
			scanner := bufio.NewScanner(strings.NewReader(tt.input))
			scanner.Split(at.Splitter)

			for scanner.Scan() {
				tokens = append(tokens, scanner.Text())
			}

			if err := scanner.Err(); err != nil {
				t.Fatalf("Scanner error: %v", err)
			}

			if len(tokens) != len(tt.expected) {
				t.Fatalf("Expected %d tokens, got %d.\nExpected: %v\nGot: %v",
					len(tt.expected), len(tokens), tt.expected, tokens)
			}

			for i, expected := range tt.expected {
				if tokens[i] != expected {
					t.Errorf("Token %d: expected %q, got %q", i, expected, tokens[i])
				}
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected at.ResponseType
	}{
		// Final responses
		{name: "OK response", input: "OK", expected: at.TypeFinal},
		{name: "ERROR response", input: "ERROR", expected: at.TypeFinal},
		{name: "SHUT OK response", input: "SHUT OK", expected: at.TypeFinal},
		{name: "CME Error", input: "+CME ERROR: 30", expected: at.TypeFinal},
		{name: "CMS Error", input: "+CMS ERROR: 500", expected: at.TypeFinal},

		// URCs
		{name: "Incoming data", input: "+CIPRXGET: 1,0", expected: at.TypeURC},
		{name: "PDP deactivated", input: "+PDP: DEACT", expected: at.TypeURC},
		{name: "Under-voltage warning", input: "UNDER-VOLTAGE WARNNING", expected: at.TypeURC},
		{name: "Socket closed", input: "0, CLOSED", expected: at.TypeURC},

		// Data responses
		{name: "Receive confirmation", input: "+CIPRXGET: 2,0,10,0", expected: at.TypeData},
		{name: "Network registration", input: "+CREG: 0,1", expected: at.TypeData},
		{name: "HTTP action", input: "+HTTPACTION: 0,200,1234", expected: at.TypeData},
		{name: "IMEI", input: "869170031234567", expected: at.TypeData},
		{name: "Power down banner", input: "NORMAL POWER DOWN", expected: at.TypeData},

		// Prompt
		{name: "Data input prompt", input: "> ", expected: at.TypePrompt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := at.Classify(tt.input)
			if result != tt.expected {
				t.Errorf("Expected %v, got %v for input %q", tt.expected, result, tt.input)
			}
		})
	}
}

func TestIsError(t *testing.T) {
	for line, want := range map[string]bool{
		"OK":             false,
		"SHUT OK":        false,
		"ERROR":          true,
		"+CME ERROR: 3":  true,
		"+HTTPREAD: 64":  false,
		"0, CONNECT OK":  false,
		"+PDP: DEACT":    false,
		"NO CARRIER":     true,
		"DATA ACCEPT: 0": false,
	} {
		if got := at.IsError(line); got != want {
			t.Errorf("IsError(%q) = %v, want %v", line, got, want)
		}
	}
}
