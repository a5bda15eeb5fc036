package store

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/messaging-cli/internal/model"
)

// updateColumns flattens a CacheUpdate into parallel column/value slices in a
// stable order. Only fields the caller set are included, which is what makes
// the upsert a merge: omitted columns are never part of the statement and so
// never overwrite existing data. The key column and updated_at are appended
// by the backend.
func updateColumns(u model.CacheUpdate) ([]string, []any, error) {
	var cols []string
	var args []any

	if u.CompanyName != nil {
		cols = append(cols, "company_name")
		args = append(args, *u.CompanyName)
	}
	if u.LinkedInURL != nil {
		cols = append(cols, "linkedin_url")
		args = append(args, *u.LinkedInURL)
	}
	if u.LinkedInData != nil {
		cols = append(cols, "linkedin_data")
		args = append(args, []byte(u.LinkedInData))
	}
	if u.WebsiteData != nil {
		data, err := json.Marshal(u.WebsiteData)
		if err != nil {
			return nil, nil, eris.Wrap(err, "store: marshal website data")
		}
		cols = append(cols, "website_data")
		args = append(args, data)
	}
	if u.Brief != nil {
		data, err := json.Marshal(u.Brief)
		if err != nil {
			return nil, nil, eris.Wrap(err, "store: marshal brief")
		}
		cols = append(cols, "prospect_brief")
		args = append(args, data)
	}
	if u.Messaging != nil {
		cols = append(cols, "custom_messaging")
		args = append(args, *u.Messaging)
	}
	if u.MessageService != nil {
		cols = append(cols, "message_service")
		args = append(args, *u.MessageService)
	}
	if u.MessageProblem != nil {
		cols = append(cols, "message_problem")
		args = append(args, *u.MessageProblem)
	}
	if u.MessageSignals != nil {
		cols = append(cols, "message_signals")
		args = append(args, *u.MessageSignals)
	}
	if u.Status != model.StatusNone {
		cols = append(cols, "status")
		args = append(args, string(u.Status))
	}
	if u.ErrorMessage != nil {
		cols = append(cols, "error_message")
		args = append(args, *u.ErrorMessage)
	}

	return cols, args, nil
}

// prospectRow is the nullable scratch space for reading a prospect_cache row.
type prospectRow struct {
	companyName    *string
	companyWebsite string
	linkedInURL    *string
	linkedInData   []byte
	websiteData    []byte
	brief          []byte
	messaging      *string
	messageService *string
	messageProblem *string
	messageSignals *string
	status         *string
	errorMessage   *string
	updatedAt      time.Time
}

// toRecord converts a scanned row into a CacheRecord.
func (r prospectRow) toRecord() (*model.CacheRecord, error) {
	rec := &model.CacheRecord{CompanyWebsite: r.companyWebsite, UpdatedAt: r.updatedAt}
	if r.companyName != nil {
		rec.CompanyName = *r.companyName
	}
	if r.linkedInURL != nil {
		rec.LinkedInURL = *r.linkedInURL
	}
	if len(r.linkedInData) > 0 {
		rec.LinkedInData = json.RawMessage(r.linkedInData)
	}
	if len(r.websiteData) > 0 {
		rec.WebsiteData = &model.WebsiteData{}
		if err := json.Unmarshal(r.websiteData, rec.WebsiteData); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal website data")
		}
	}
	if len(r.brief) > 0 {
		rec.Brief = &model.ProspectBrief{}
		if err := json.Unmarshal(r.brief, rec.Brief); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal brief")
		}
	}
	if r.messaging != nil {
		rec.Messaging = *r.messaging
	}
	if r.messageService != nil {
		rec.MessageService = *r.messageService
	}
	if r.messageProblem != nil {
		rec.MessageProblem = *r.messageProblem
	}
	if r.messageSignals != nil {
		rec.MessageSignals = *r.messageSignals
	}
	if r.status != nil {
		rec.Status = model.ProcessingStatus(*r.status)
	}
	if r.errorMessage != nil {
		rec.ErrorMessage = *r.errorMessage
	}
	return rec, nil
}
