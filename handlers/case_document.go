package handlers

import (
	"fmt"
	"io"
	"net/http"

	"law_timeline_app_go/models"
	"law_timeline_app_go/services"
	"law_timeline_app_go/services/i18n"

	"github.com/juju/errors"
	"github.com/labstack/echo/v4"
)

type seedDocumentsRequest struct {
	Names []string `json:"names"`
}

type reviewResponse struct {
	*services.DocumentResult
	Message string `json:"message,omitempty"`
}

// SeedDocumentsHandler adds required documents by name, skipping existing ones
func SeedDocumentsHandler(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req seedDocumentsRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	docs, err := timeline().SeedRequirements(actor, c.Param("id"), req.Names)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, docs)
}

// ListCaseDocumentsHandler lists documents with the requirement summary
func ListCaseDocumentsHandler(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	list, err := timeline().ListCaseDocuments(actor, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, list)
}

// AttachDocumentFileHandler stores a file against a document requirement
func AttachDocumentFileHandler(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	version, err := expectedVersion(c)
	if err != nil {
		return err
	}
	file, closer, err := formFile(c)
	if err != nil {
		return err
	}
	defer closer.Close()

	result, err := timeline().AttachFile(c.Request().Context(), actor, c.Param("id"), c.Param("did"), file, version)
	if err != nil {
		return httpError(err)
	}
	result.Warnings = nonNilWarnings(result.Warnings)
	return c.JSON(http.StatusOK, result)
}

// UploadAdHocDocumentHandler uploads a document that is not a requirement
func UploadAdHocDocumentHandler(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	file, closer, err := formFile(c)
	if err != nil {
		return err
	}
	defer closer.Close()

	name := c.FormValue("name")
	if name == "" {
		name = file.Filename
	}
	result, err := timeline().UploadAdHocDocument(c.Request().Context(), actor, c.Param("id"), name, file)
	if err != nil {
		return httpError(err)
	}
	result.Warnings = nonNilWarnings(result.Warnings)
	return c.JSON(http.StatusCreated, result)
}

// ReviewDocumentHandler applies a partial status/notes review. A review that
// changes nothing still answers 200 with an explanatory message.
func ReviewDocumentHandler(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var input services.ReviewInput
	if err := bindJSON(c, &input); err != nil {
		return err
	}
	if input.ExpectedVersion == nil {
		if input.ExpectedVersion, err = expectedVersion(c); err != nil {
			return err
		}
	}

	result, err := timeline().ReviewDocument(c.Request().Context(), actor, c.Param("id"), c.Param("did"), input)
	if err != nil {
		return httpError(err)
	}
	result.Warnings = nonNilWarnings(result.Warnings)
	resp := reviewResponse{DocumentResult: result}
	if !result.Changed {
		resp.Message = i18n.T(c.Request().Context(), "api.nothing_to_update")
	}
	return c.JSON(http.StatusOK, resp)
}

// DownloadDocumentFileHandler redirects to a signed link when the storage
// provider can sign one, and streams the file otherwise
func DownloadDocumentFileHandler(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	url, err := timeline().DocumentFileURL(c.Request().Context(), actor, c.Param("id"), c.Param("did"))
	if err == nil {
		return c.Redirect(http.StatusFound, url)
	}
	if !errors.Is(err, errors.NotSupported) {
		return httpError(err)
	}

	reader, contentType, doc, err := timeline().OpenDocumentFile(c.Request().Context(), actor, c.Param("id"), c.Param("did"))
	if err != nil {
		return httpError(err)
	}
	defer reader.Close()

	if contentType == "" {
		contentType = doc.MimeType
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", downloadName(doc)))
	return c.Stream(http.StatusOK, contentType, reader)
}

func formFile(c echo.Context) (services.FileUpload, io.Closer, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return services.FileUpload{}, nil, echo.NewHTTPError(http.StatusBadRequest, "File is required")
	}
	file, closer, err := services.OpenFileUpload(fh)
	if err != nil {
		return services.FileUpload{}, nil, httpError(err)
	}
	return file, closer, nil
}

func downloadName(doc *models.CaseDocument) string {
	if doc.FileOriginalName != nil && *doc.FileOriginalName != "" {
		return *doc.FileOriginalName
	}
	return doc.Name
}
