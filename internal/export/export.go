// Package export flattens stored scans into per-port rows for CSV download
// and terminal display.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/anstrom/netsweep/internal/db"
)

// TimestampLayout is how scan timestamps appear in exported rows (UTC).
const TimestampLayout = "2006-01-02 15:04:05"

// Header lists the export columns in order.
var Header = []string{
	"Target", "Timestamp", "Host", "Hostname", "State",
	"Protocol", "Port", "Port State", "Service", "Version",
}

// Row is one (host, protocol, port) triple of a scan.
type Row struct {
	Target    string
	Timestamp string
	Host      string
	Hostname  string
	State     string
	Protocol  string
	Port      uint16
	PortState string
	Service   string
	Version   string
}

// Fields returns the row in Header order.
func (r Row) Fields() []string {
	return []string{
		r.Target, r.Timestamp, r.Host, r.Hostname, r.State,
		r.Protocol, strconv.Itoa(int(r.Port)), r.PortState, r.Service, r.Version,
	}
}

// Rows flattens record into one row per port. Hosts without protocol blocks
// contribute no rows.
func Rows(record *db.ScanRecord) []Row {
	if record == nil {
		return nil
	}

	ts := record.Timestamp.UTC().Format(TimestampLayout)
	var rows []Row
	for _, host := range record.Results {
		for _, block := range host.Protocols {
			for _, port := range block.Ports {
				rows = append(rows, Row{
					Target:    record.Target,
					Timestamp: ts,
					Host:      host.Host,
					Hostname:  host.Hostname,
					State:     host.State,
					Protocol:  block.Protocol,
					Port:      port.Port,
					PortState: port.State,
					Service:   port.Service,
					Version:   port.Version,
				})
			}
		}
	}
	return rows
}

// Filename is the download name of record's CSV export.
func Filename(id int64) string {
	return fmt.Sprintf("scan_%d.csv", id)
}

// WriteCSV writes the header and every row of record to w.
func WriteCSV(w io.Writer, record *db.ScanRecord) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("error writing CSV header: %w", err)
	}
	for _, row := range Rows(record) {
		if err := writer.Write(row.Fields()); err != nil {
			return fmt.Errorf("error writing CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// RenderTable renders the rows of record as a terminal table. Target and
// timestamp are omitted since they are the same on every row.
func RenderTable(w io.Writer, record *db.ScanRecord) error {
	table := tablewriter.NewWriter(w)
	table.Header("Host", "Hostname", "State", "Protocol", "Port", "Port State", "Service", "Version")

	for _, row := range Rows(record) {
		fields := row.Fields()
		if err := table.Append(fields[2:]); err != nil {
			return fmt.Errorf("error rendering row: %w", err)
		}
	}

	return table.Render()
}
