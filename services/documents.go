package services

import (
	"context"
	"html"
	"io"
	"strings"
	"time"

	"law_timeline_app_go/models"
	"law_timeline_app_go/services/i18n"

	"github.com/juju/errors"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
)

var textPolicy = bluemonday.StrictPolicy()

// sanitizeText strips markup from user supplied text and keeps it as plain text
func sanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

// DocumentResult is the outcome of a document write
type DocumentResult struct {
	Document *models.CaseDocument `json:"document"`
	Changed  bool                 `json:"changed"`
	Warnings []Warning            `json:"warnings"`
}

// DocumentSummary aggregates the requirement workflow of a case
type DocumentSummary struct {
	Counts              map[string]int `json:"counts"`
	RequiredTotal       int            `json:"required_total"`
	RequiredOutstanding int            `json:"required_outstanding"`
	RequiredComplete    bool           `json:"required_complete"`
}

// DocumentList is the documents of a case with their summary
type DocumentList struct {
	Documents []models.CaseDocument `json:"documents"`
	Summary   DocumentSummary       `json:"summary"`
}

// SummarizeDocuments counts documents per status. A required document is
// outstanding until approved or marked not required.
func SummarizeDocuments(docs []models.CaseDocument) DocumentSummary {
	summary := DocumentSummary{Counts: make(map[string]int, len(models.DocumentStatuses))}
	for _, status := range models.DocumentStatuses {
		summary.Counts[status] = 0
	}
	for _, d := range docs {
		summary.Counts[d.Status]++
		if !d.IsRequired {
			continue
		}
		summary.RequiredTotal++
		if d.Status != models.DocumentStatusApproved && d.Status != models.DocumentStatusNotRequired {
			summary.RequiredOutstanding++
		}
	}
	summary.RequiredComplete = summary.RequiredOutstanding == 0
	return summary
}

func loadDocument(tx *gorm.DB, c *models.Case, documentID string) (*models.CaseDocument, error) {
	var doc models.CaseDocument
	err := tx.Where("id = ? AND case_id = ? AND firm_id = ?", documentID, c.ID, c.FirmID).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFoundf("document %s", documentID)
		}
		return nil, errors.Trace(err)
	}
	return &doc, nil
}

// seedRequirements inserts one pending required document per name that the
// case does not have yet, comparing normalized names
func seedRequirements(tx *gorm.DB, c *models.Case, names []string) ([]models.CaseDocument, error) {
	var existing []string
	if err := tx.Model(&models.CaseDocument{}).
		Where("firm_id = ? AND case_id = ?", c.FirmID, c.ID).
		Pluck("normalized_name", &existing).Error; err != nil {
		return nil, errors.Trace(err)
	}
	seen := make(map[string]bool, len(existing)+len(names))
	for _, n := range existing {
		seen[n] = true
	}

	var created []models.CaseDocument
	for _, name := range names {
		name = strings.Join(strings.Fields(name), " ")
		normalized := models.NormalizeDocumentName(name)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true

		doc := models.CaseDocument{
			FirmID:         c.FirmID,
			CaseID:         c.ID,
			Name:           name,
			NormalizedName: normalized,
			IsRequired:     true,
			Status:         models.DocumentStatusPending,
		}
		if err := tx.Create(&doc).Error; err != nil {
			return nil, errors.Annotatef(err, "creating requirement %q", name)
		}
		created = append(created, doc)
	}
	return created, nil
}

// SeedRequirements adds the named requirements missing from a case
func (s *TimelineService) SeedRequirements(actor Actor, caseID string, names []string) ([]models.CaseDocument, error) {
	if err := actor.requireStaff("seeding requirements"); err != nil {
		return nil, err
	}
	var created []models.CaseDocument
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		c, err := loadCase(tx, actor, caseID)
		if err != nil {
			return err
		}
		created, err = seedRequirements(tx, c, names)
		return err
	})
	return created, err
}

// ListCaseDocuments returns the documents of a case, requirements first
func (s *TimelineService) ListCaseDocuments(actor Actor, caseID string) (*DocumentList, error) {
	c, err := loadCase(s.DB, actor, caseID)
	if err != nil {
		return nil, err
	}
	var docs []models.CaseDocument
	if err := s.DB.Where("firm_id = ? AND case_id = ?", c.FirmID, c.ID).
		Order("is_required DESC, created_at ASC").
		Find(&docs).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return &DocumentList{Documents: docs, Summary: SummarizeDocuments(docs)}, nil
}

// AttachFile stores a new file for a document and marks it submitted. The
// new file is written before the record changes; the replaced file is only
// removed after commit.
func (s *TimelineService) AttachFile(ctx context.Context, actor Actor, caseID, documentID string, file FileUpload, expectedVersion *int) (*DocumentResult, error) {
	c, err := loadCase(s.DB, actor, caseID)
	if err != nil {
		return nil, err
	}
	doc, err := loadDocument(s.DB, c, documentID)
	if err != nil {
		return nil, err
	}
	if actor.IsClient() && !doc.ClientCanAttach() {
		return nil, errors.Forbiddenf("document %s is %s", doc.ID, doc.Status)
	}
	if err := checkVersion("document", doc.ID, doc.Version, expectedVersion); err != nil {
		return nil, err
	}
	if err := s.limits().Validate(file); err != nil {
		return nil, err
	}
	if s.Storage == nil {
		return nil, errors.NotSupportedf("file storage")
	}

	key := GenerateCaseDocumentKey(c.FirmID, c.ID, file.Filename)
	stored, err := s.Storage.UploadReader(ctx, file.Reader, key, file.MediaType(), file.Size)
	if err != nil {
		return nil, errors.Annotatef(err, "storing file for document %s", doc.ID)
	}

	now := s.now()
	ob := &outbox{}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		c, err := loadCase(tx, actor, caseID)
		if err != nil {
			return err
		}
		current, err := loadDocument(tx, c, documentID)
		if err != nil {
			return err
		}
		if actor.IsClient() && !current.ClientCanAttach() {
			return conflictf("document %s changed to %s", current.ID, current.Status)
		}
		if err := checkVersion("document", current.ID, current.Version, expectedVersion); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"file_key":           stored.Key,
			"file_original_name": file.Filename,
			"file_size":          stored.FileSize,
			"mime_type":          stored.MimeType,
			"status":             models.DocumentStatusSubmitted,
			"submitted_at":       now,
			"uploaded_by_id":     actor.UserID,
			"version":            current.Version + 1,
		}
		if actor.IsClient() {
			updates["reviewer_notes"] = nil
		}
		res := tx.Model(&models.CaseDocument{}).
			Where("id = ? AND firm_id = ? AND version = ?", current.ID, c.FirmID, current.Version).
			Updates(updates)
		if res.Error != nil {
			return errors.Trace(res.Error)
		}
		if res.RowsAffected == 0 {
			return conflictf("document %s was modified concurrently", current.ID)
		}

		if err := writeAudit(tx, actor, auditEntry{
			CaseID:       c.ID,
			ResourceType: models.AuditResourceDocument,
			ResourceID:   current.ID,
			ResourceName: current.Name,
			Action:       models.AuditActionUpload,
			Description:  "file attached: " + file.Filename,
			OldValues:    map[string]interface{}{"status": current.Status, "version": current.Version},
			NewValues:    map[string]interface{}{"status": models.DocumentStatusSubmitted, "version": current.Version + 1},
		}); err != nil {
			return err
		}

		if current.HasFile() && *current.FileKey != stored.Key {
			if err := ob.add(tx, c.FirmID, models.OutboxKindDeleteFile, models.AuditResourceDocument, current.ID,
				deleteFilePayload{Key: *current.FileKey}); err != nil {
				return err
			}
		}
		s.Metrics.observeDocumentTransition(current.Status, models.DocumentStatusSubmitted)
		return s.enqueueUploadNotice(tx, ob, actor, c, current)
	})
	if err != nil {
		if derr := s.Storage.Delete(ctx, stored.Key); derr != nil {
			logger.Warningf("document %s: removing orphaned file %s: %v", documentID, stored.Key, derr)
		}
		return nil, err
	}

	warnings := s.run(ctx, ob)
	updated, err := loadDocument(s.DB, c, documentID)
	if err != nil {
		return nil, err
	}
	return &DocumentResult{Document: updated, Changed: true, Warnings: warnings}, nil
}

// UploadAdHocDocument adds a non-required document with a file, submitted right away
func (s *TimelineService) UploadAdHocDocument(ctx context.Context, actor Actor, caseID, name string, file FileUpload) (*DocumentResult, error) {
	c, err := loadCase(s.DB, actor, caseID)
	if err != nil {
		return nil, err
	}
	name = sanitizeText(name)
	if name == "" {
		name = file.Filename
	}
	if err := s.limits().Validate(file); err != nil {
		return nil, err
	}
	if s.Storage == nil {
		return nil, errors.NotSupportedf("file storage")
	}

	key := GenerateCaseDocumentKey(c.FirmID, c.ID, file.Filename)
	stored, err := s.Storage.UploadReader(ctx, file.Reader, key, file.MediaType(), file.Size)
	if err != nil {
		return nil, errors.Annotate(err, "storing ad-hoc document")
	}

	now := s.now()
	doc := &models.CaseDocument{
		FirmID:           c.FirmID,
		CaseID:           c.ID,
		Name:             name,
		IsRequired:       false,
		Status:           models.DocumentStatusSubmitted,
		FileKey:          strPtr(stored.Key),
		FileOriginalName: strPtr(file.Filename),
		FileSize:         stored.FileSize,
		MimeType:         stored.MimeType,
		SubmittedAt:      &now,
		UploadedByID:     ptrIfNotEmpty(actor.UserID),
	}
	ob := &outbox{}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(doc).Error; err != nil {
			return errors.Annotate(err, "creating document")
		}
		if err := writeAudit(tx, actor, auditEntry{
			CaseID:       c.ID,
			ResourceType: models.AuditResourceDocument,
			ResourceID:   doc.ID,
			ResourceName: doc.Name,
			Action:       models.AuditActionUpload,
			Description:  "ad-hoc document uploaded: " + file.Filename,
		}); err != nil {
			return err
		}
		return s.enqueueUploadNotice(tx, ob, actor, c, doc)
	})
	if err != nil {
		if derr := s.Storage.Delete(ctx, stored.Key); derr != nil {
			logger.Warningf("case %s: removing orphaned file %s: %v", c.ID, stored.Key, derr)
		}
		return nil, err
	}

	return &DocumentResult{Document: doc, Changed: true, Warnings: s.run(ctx, ob)}, nil
}

// ReviewInput is a partial review: either field may be omitted
type ReviewInput struct {
	Status          *string `json:"status"`
	Notes           *string `json:"notes"`
	ExpectedVersion *int    `json:"expected_version"`
}

// ReviewDocument lets firm members set any status and reviewer notes.
// Supplying values equal to the current ones reports Changed=false.
func (s *TimelineService) ReviewDocument(ctx context.Context, actor Actor, caseID, documentID string, input ReviewInput) (*DocumentResult, error) {
	if err := actor.requireStaff("reviewing documents"); err != nil {
		return nil, err
	}
	if input.Status == nil && input.Notes == nil {
		return nil, errors.NotValidf("review without status or notes")
	}
	if input.Status != nil && !models.IsValidDocumentStatus(*input.Status) {
		return nil, errors.NotValidf("document status %q", *input.Status)
	}
	var notes *string
	if input.Notes != nil {
		notes = ptrIfNotEmpty(sanitizeText(*input.Notes))
	}

	result := &DocumentResult{}
	ob := &outbox{}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		c, err := loadCase(tx, actor, caseID)
		if err != nil {
			return err
		}
		doc, err := loadDocument(tx, c, documentID)
		if err != nil {
			return err
		}
		if err := checkVersion("document", doc.ID, doc.Version, input.ExpectedVersion); err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if input.Status != nil && *input.Status != doc.Status {
			updates["status"] = *input.Status
		}
		if input.Notes != nil && !equalStringPtr(notes, doc.ReviewerNotes) {
			updates["reviewer_notes"] = notes
		}
		if len(updates) == 0 {
			result.Document = doc
			return nil
		}

		updates["reviewed_at"] = s.now()
		updates["reviewed_by_id"] = actor.UserID
		updates["version"] = doc.Version + 1
		res := tx.Model(&models.CaseDocument{}).
			Where("id = ? AND firm_id = ? AND version = ?", doc.ID, c.FirmID, doc.Version).
			Updates(updates)
		if res.Error != nil {
			return errors.Trace(res.Error)
		}
		if res.RowsAffected == 0 {
			return conflictf("document %s was modified concurrently", doc.ID)
		}

		oldStatus := doc.Status
		if err := writeAudit(tx, actor, auditEntry{
			CaseID:       c.ID,
			ResourceType: models.AuditResourceDocument,
			ResourceID:   doc.ID,
			ResourceName: doc.Name,
			Action:       models.AuditActionReview,
			OldValues:    map[string]interface{}{"status": doc.Status, "reviewer_notes": doc.ReviewerNotes},
			NewValues:    updates,
		}); err != nil {
			return err
		}

		if doc, err = loadDocument(tx, c, documentID); err != nil {
			return err
		}
		result.Document = doc
		result.Changed = true

		if oldStatus != doc.Status {
			s.Metrics.observeDocumentTransition(oldStatus, doc.Status)
			return s.enqueueDocumentNotice(tx, ob, c, doc, c.ClientID, models.NotificationTypeDocumentReviewed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Warnings = s.run(ctx, ob)
	return result, nil
}

// signedURLExpiry is how long a direct download link stays valid
const signedURLExpiry = 15 * time.Minute

// loadDocumentFile returns a document of the case that has a stored file
func (s *TimelineService) loadDocumentFile(actor Actor, caseID, documentID string) (*models.CaseDocument, error) {
	c, err := loadCase(s.DB, actor, caseID)
	if err != nil {
		return nil, err
	}
	doc, err := loadDocument(s.DB, c, documentID)
	if err != nil {
		return nil, err
	}
	if !doc.HasFile() {
		return nil, errors.NotFoundf("file of document %s", doc.ID)
	}
	if s.Storage == nil {
		return nil, errors.NotSupportedf("file storage")
	}
	return doc, nil
}

// DocumentFileURL returns a short-lived direct link to the current file of
// a document. Providers that cannot sign return errors.NotSupported and the
// file must be streamed with OpenDocumentFile instead.
func (s *TimelineService) DocumentFileURL(ctx context.Context, actor Actor, caseID, documentID string) (string, error) {
	doc, err := s.loadDocumentFile(actor, caseID, documentID)
	if err != nil {
		return "", err
	}
	url, err := s.Storage.GetSignedURL(ctx, *doc.FileKey, signedURLExpiry)
	if err != nil {
		return "", errors.Trace(err)
	}
	return url, nil
}

// OpenDocumentFile streams the current file of a document
func (s *TimelineService) OpenDocumentFile(ctx context.Context, actor Actor, caseID, documentID string) (io.ReadCloser, string, *models.CaseDocument, error) {
	doc, err := s.loadDocumentFile(actor, caseID, documentID)
	if err != nil {
		return nil, "", nil, err
	}
	reader, contentType, err := s.Storage.Get(ctx, *doc.FileKey)
	if err != nil {
		return nil, "", nil, err
	}
	return reader, contentType, doc, nil
}

// enqueueUploadNotice tells the other side of the case about a new file:
// the assigned lawyer when the client uploads, the client otherwise
func (s *TimelineService) enqueueUploadNotice(tx *gorm.DB, ob *outbox, actor Actor, c *models.Case, doc *models.CaseDocument) error {
	if actor.IsClient() {
		if c.AssignedToID == nil {
			return nil
		}
		return s.enqueueDocumentNotice(tx, ob, c, doc, *c.AssignedToID, models.NotificationTypeDocumentSubmitted)
	}
	return s.enqueueDocumentNotice(tx, ob, c, doc, c.ClientID, models.NotificationTypeDocumentUploaded)
}

// enqueueDocumentNotice queues an in-app notification and an email for one user
func (s *TimelineService) enqueueDocumentNotice(tx *gorm.DB, ob *outbox, c *models.Case, doc *models.CaseDocument, userID, kind string) error {
	var user models.User
	err := tx.Where("id = ? AND firm_id = ?", userID, c.FirmID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Warningf("case %s: notice recipient %s not found", c.ID, userID)
		return nil
	}
	if err != nil {
		return errors.Trace(err)
	}

	lang := s.lang(user.Language)
	args := map[string]interface{}{
		"name":        doc.Name,
		"case_number": c.CaseNumber,
		"status":      i18n.Translate(lang, "status."+doc.Status),
	}
	var titleKey, messageKey string
	switch kind {
	case models.NotificationTypeDocumentSubmitted:
		titleKey, messageKey = "document.submitted_title", "document.submitted_message"
	case models.NotificationTypeDocumentUploaded:
		titleKey, messageKey = "document.uploaded_title", "document.uploaded_message"
	default:
		titleKey, messageKey = "document.reviewed_title", "document.reviewed_message"
	}
	title := i18n.Translate(lang, titleKey, args)
	message := i18n.Translate(lang, messageKey, args)
	link := "/cases/" + c.ID + "/documents"

	if err := ob.add(tx, c.FirmID, models.OutboxKindNotifyUser, models.AuditResourceDocument, doc.ID, notifyPayload{
		UserID:  user.ID,
		CaseID:  c.ID,
		Type:    kind,
		Title:   title,
		Message: message,
		LinkURL: link,
	}); err != nil {
		return err
	}
	if user.Email == "" {
		return nil
	}
	return ob.add(tx, c.FirmID, models.OutboxKindSendEmail, models.AuditResourceDocument, doc.ID, Email{
		To:       []string{user.Email},
		Subject:  i18n.Translate(lang, "document.email_subject", map[string]interface{}{"title": title, "case_number": c.CaseNumber}),
		TextBody: message + "\n\n" + strings.TrimSuffix(s.AppURL, "/") + link,
	})
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
