package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statement = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-25.50
<FITID>2024011501
<NAME>STARBUCKS STORE #1234
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240120120000[0:GMT]
<TRNAMT>-125.00
<FITID>2024012001
<NAME>Whole Foods Market
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

func TestCommands_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logging:\n  level: warn\n"), 0o600))
	ofxPath := filepath.Join(dir, "jan.ofx")
	require.NoError(t, os.WriteFile(ofxPath, []byte(statement), 0o600))
	dbPath := filepath.Join(dir, "books.db")

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetErr(&out)
		rootCmd.SetArgs(append([]string{"--config", cfgPath, "--db", dbPath}, args...))
		require.NoError(t, rootCmd.Execute(), "books %v", args)
		return out.String()
	}

	assert.Contains(t, run("migrate"), "schema version 3")
	assert.Contains(t, run("rules", "add", "coffee", "starbucks", "Meals"), "Rule 1 added")

	out := run("import", "-q", ofxPath)
	assert.Contains(t, out, "Imported: 2")
	assert.Contains(t, out, "Classified by rule: 1")

	assert.Contains(t, run("import", "-q", ofxPath), "Already stored: 2")
	assert.Contains(t, run("duplicates"), "No duplicates flagged")
	assert.Contains(t, run("rules", "list"), "coffee")
	assert.Contains(t, run("merchants", "add", "Whole Foods Market", "Groceries"), "Merchant 1 (whole foods market) added")
	assert.Contains(t, run("patterns", "detect", "--as-of", "2024-02-01"), "0 recurring patterns")
	assert.Contains(t, run("patterns", "missing", "--as-of", "2024-02-01"), "No recurring payments overdue")
	run("anomalies", "-q", "--from", "2024-01-01", "--to", "2024-01-31")
}
