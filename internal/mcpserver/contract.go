package mcpserver

// EntryFormatContract describes the export document format that LLM
// consumers should follow when producing importable entry batches.
const EntryFormatContract = `# Wunjo Entry Export Contract

Entry batches dropped into the import inbox (or produced by tools) MUST
follow this structure. Both JSON and YAML encodings are accepted; files
end in .json, .yaml or .yml.

## Structure

` + "```" + `json
{
  "device": "device-name",
  "exported_at": "2026-03-01T08:30:00Z",
  "entries": [
    {
      "date": "2026-03-01",
      "category_id": "fitness",
      "metric_id": "distance",
      "duration_min": 45,
      "value": 7.5,
      "notes": "morning run"
    }
  ]
}
` + "```" + `

## Rules

1. **` + "`" + `entries` + "`" + ` must be non-empty.** A document with no entries is rejected.
2. **` + "`" + `date` + "`" + ` is required** on every entry and uses the YYYY-MM-DD form.
3. **` + "`" + `category_id` + "`" + ` is required** and must name an existing category.
   Entries for unknown categories are skipped, not fatal.
4. **` + "`" + `metric_id` + "`" + `** is optional; when present it must be one of the
   category's metrics.
5. **` + "`" + `duration_min` + "`" + `** is a non-negative integer number of minutes.
6. **` + "`" + `value` + "`" + `** is the measured amount in the metric's unit.
7. **Encoding** is UTF-8. Timestamps use ISO-8601 / RFC 3339.
8. A file is imported at most once: re-drops with identical content are
   deduplicated by checksum.
`
