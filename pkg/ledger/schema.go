package ledger

import "assembly-ledger/pkg/domain"

// Columns is the current ledger schema, in file order.
var Columns = []string{
	"session_number",
	"session_date",
	"page_url",
	"agenda_url",
	"provisional_transcript_url",
	"final_transcript_url",
	"attachment_url",
	"video_id",
	"video_time",
	"video_date",
	"stream_url",
	"video_page_url",
	"external_id",
	"last_check",
	"status",
	"failure_reason",
}

var knownColumns = func() map[string]bool {
	m := make(map[string]bool, len(Columns))
	for _, c := range Columns {
		m[c] = true
	}
	return m
}()

// missingColumns returns the schema columns absent from header.
func missingColumns(header []string) []string {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	var missing []string
	for _, c := range Columns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

// extraColumns returns the header columns unknown to the schema, in order.
func extraColumns(header []string) []string {
	var extra []string
	for _, h := range header {
		if h != "" && !knownColumns[h] {
			extra = append(extra, h)
		}
	}
	return extra
}

func recordFromRow(get func(string) string, extras []string) domain.VideoRecord {
	rec := domain.VideoRecord{
		SessionNumber:            get("session_number"),
		SessionDate:              get("session_date"),
		PageURL:                  get("page_url"),
		AgendaURL:                get("agenda_url"),
		ProvisionalTranscriptURL: get("provisional_transcript_url"),
		FinalTranscriptURL:       get("final_transcript_url"),
		AttachmentURL:            get("attachment_url"),
		VideoID:                  get("video_id"),
		VideoTime:                get("video_time"),
		VideoDate:                get("video_date"),
		StreamURL:                get("stream_url"),
		VideoPageURL:             get("video_page_url"),
		ExternalID:               get("external_id"),
		LastCheck:                get("last_check"),
		Status:                   get("status"),
		FailureReason:            get("failure_reason"),
	}
	for _, name := range extras {
		if v := get(name); v != "" {
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[name] = v
		}
	}
	return rec
}

func rowFromRecord(rec domain.VideoRecord, extras []string) []string {
	row := []string{
		rec.SessionNumber,
		rec.SessionDate,
		rec.PageURL,
		rec.AgendaURL,
		rec.ProvisionalTranscriptURL,
		rec.FinalTranscriptURL,
		rec.AttachmentURL,
		rec.VideoID,
		rec.VideoTime,
		rec.VideoDate,
		rec.StreamURL,
		rec.VideoPageURL,
		rec.ExternalID,
		rec.LastCheck,
		rec.Status,
		rec.FailureReason,
	}
	for _, name := range extras {
		row = append(row, rec.Extra[name])
	}
	return row
}
