package policy

import "testing"

func TestValidateAllowsSupportedTypes(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		declared string
		sniffed  string
		sample   []byte
	}{
		{"pdf", "file.pdf", "application/pdf", "application/pdf", []byte("%PDF-1.7\n")},
		{"png", "file.png", "image/png", "image/png", []byte("\x89PNG\r\n\x1a\nrest")},
		{"jpg", "file.jpg", "image/jpeg", "image/jpeg", []byte("\xff\xd8\xff\xee")},
		{"txt", "note.txt", "text/plain", "text/plain", []byte("hello")},
		{"csv sniffed as plain", "data.csv", "text/csv", "text/plain", []byte("a,b,c")},
		{
			"docx",
			"file.docx",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/zip",
			[]byte("PK\x03\x04payload"),
		},
		{
			"docx declared octet-stream",
			"file.docx",
			"application/octet-stream",
			"application/zip",
			[]byte("PK\x03\x04payload"),
		},
		{"declared mime with parameters", "note.txt", "text/plain; charset=utf-8", "text/plain", []byte("hi")},
		{"uppercase extension", "REPORT.PDF", "application/pdf", "application/pdf", []byte("%PDF-1.4")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(Input{
				OriginalFilename:    tt.filename,
				DeclaredContentType: tt.declared,
				SniffedContentType:  tt.sniffed,
				SizeBytes:           1024,
				SizeKnown:           true,
				SampleBytes:         tt.sample,
			})
			if !result.OK {
				t.Errorf("expected ok, got reason %q details %v", result.Reason, result.Details)
			}
			if result.Reason != "" {
				t.Errorf("expected empty reason on success, got %q", result.Reason)
			}
		})
	}
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name   string
		in     Input
		reason string
	}{
		{
			"disallowed extension",
			Input{
				OriginalFilename:    "malware.exe",
				DeclaredContentType: "application/octet-stream",
				SniffedContentType:  "application/x-dosexec",
				SizeBytes:           128,
				SizeKnown:           true,
				SampleBytes:         []byte("MZ...."),
			},
			ReasonDisallowedExtension,
		},
		{
			"no extension",
			Input{
				OriginalFilename:    "README",
				DeclaredContentType: "text/plain",
				SniffedContentType:  "text/plain",
				SizeKnown:           true,
			},
			ReasonDisallowedExtension,
		},
		{
			"declared mime mismatch",
			Input{
				OriginalFilename:    "image.png",
				DeclaredContentType: "application/pdf",
				SniffedContentType:  "application/pdf",
				SizeBytes:           128,
				SizeKnown:           true,
				SampleBytes:         []byte("%PDF-1.7"),
			},
			ReasonDeclaredMimeMismatch,
		},
		{
			"too large",
			Input{
				OriginalFilename:    "note.txt",
				DeclaredContentType: "text/plain",
				SniffedContentType:  "text/plain",
				SizeBytes:           11,
				SizeKnown:           true,
				SampleBytes:         []byte("hello world"),
				MaxSizeBytes:        10,
			},
			ReasonTooLarge,
		},
		{
			"sniff missing",
			Input{
				OriginalFilename:    "note.txt",
				DeclaredContentType: "text/plain",
				SniffedContentType:  "",
				SizeBytes:           5,
				SizeKnown:           true,
				SampleBytes:         []byte("hello"),
			},
			ReasonSniffMissing,
		},
		{
			"sniff mismatch",
			Input{
				OriginalFilename:    "doc.pdf",
				DeclaredContentType: "application/pdf",
				SniffedContentType:  "text/plain",
				SizeBytes:           18,
				SizeKnown:           true,
				SampleBytes:         []byte("this is plain text"),
			},
			ReasonSniffMismatch,
		},
		{
			"magic missing",
			Input{
				OriginalFilename:    "file.pdf",
				DeclaredContentType: "application/pdf",
				SniffedContentType:  "application/pdf",
				SizeBytes:           0,
				SizeKnown:           true,
				SampleBytes:         nil,
			},
			ReasonMagicMissing,
		},
		{
			"docx without zip magic",
			Input{
				OriginalFilename:    "resume.docx",
				DeclaredContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
				SniffedContentType:  "application/zip",
				SizeBytes:           1024,
				SizeKnown:           true,
				SampleBytes:         []byte("not-a-zip"),
			},
			ReasonMagicMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.in)
			if result.OK {
				t.Fatal("expected validation failure")
			}
			if result.Reason != tt.reason {
				t.Errorf("expected reason %q, got %q", tt.reason, result.Reason)
			}
		})
	}
}

func TestValidateSizeUnknownSkipsSizeChecks(t *testing.T) {
	result := Validate(Input{
		OriginalFilename:    "note.txt",
		DeclaredContentType: "text/plain",
		SniffedContentType:  "text/plain",
		SizeKnown:           false,
		MaxSizeBytes:        1,
	})
	if !result.OK {
		t.Errorf("expected ok when size is unknown, got %q", result.Reason)
	}
}

func TestOfficeHelpers(t *testing.T) {
	if !IsOfficeExtension("slides.PPTX") {
		t.Error("expected pptx to be an office extension")
	}
	if IsOfficeExtension("image.png") {
		t.Error("png is not an office extension")
	}

	tests := map[string]string{
		"a.docx": "word/document.xml",
		"a.xlsx": "xl/workbook.xml",
		"a.pptx": "ppt/presentation.xml",
		"a.txt":  "",
	}
	for filename, want := range tests {
		if got := OfficeRequiredEntry(filename); got != want {
			t.Errorf("OfficeRequiredEntry(%q) = %q, want %q", filename, got, want)
		}
	}
}

func TestAllowedExtension(t *testing.T) {
	if !AllowedExtension("x.pdf") || AllowedExtension("x.exe") {
		t.Error("allowlist membership check failed")
	}
}
