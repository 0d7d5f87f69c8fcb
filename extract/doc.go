// Package extract turns downloaded PDF filings into plain text.
package extract
