// Package enrich implements the merge engine, tag generator, and batch
// orchestrator for connection enrichment.
package enrich

import (
	"fmt"
	"sort"
	"time"

	"github.com/sells-group/contacts-cli/internal/model"
)

// Warnings collects non-fatal anomalies observed during a merge.
type Warnings []string

// Merge folds a provider attribute bag into the record. It only ever fills
// gaps: a populated field is never overwritten and structural entries are
// never deleted, so repeating a merge with the same input is a no-op.
func Merge(conn *model.Connection, raw model.RawProfile) Warnings {
	var warns Warnings

	if v := raw.Str("headline"); v != "" && conn.Headline == "" {
		conn.Headline = v
	}
	if v := raw.Str("locality"); v != "" && conn.Location == "" {
		conn.Location = v
	}
	if v := raw.Str("picture_url_orig"); v != "" && conn.ProfileImageURL == "" {
		conn.ProfileImageURL = v
	}
	if v := raw.Strings("skills"); len(v) > 0 && len(conn.Skills) == 0 {
		conn.Skills = v
	}
	if v := raw.Maps("volunteering"); len(v) > 0 && len(conn.Volunteering) == 0 {
		conn.Volunteering = v
	}
	if v := raw.Maps("publications"); len(v) > 0 && len(conn.Publications) == 0 {
		conn.Publications = v
	}
	if v := raw.Maps("awards"); len(v) > 0 && len(conn.Awards) == 0 {
		conn.Awards = v
	}

	if entries := raw.Maps("education"); len(entries) > 0 && len(conn.Education) == 0 {
		edu := make([]model.Education, 0, len(entries))
		for _, e := range entries {
			bag := model.RawProfile(e)
			edu = append(edu, model.Education{
				School:     bag.Str("school_name"),
				Degree:     bag.Str("degree"),
				StartDate:  bag.Str("start_date"),
				EndDate:    bag.Str("end_date"),
				Activities: bag.Str("activities"),
			})
		}
		conn.Education = edu
	}

	mergeExperience(conn, raw.Maps("experience"))

	if entries := raw.Maps("certifications"); len(entries) > 0 && len(conn.Certifications) == 0 {
		certs := make([]model.Certification, 0, len(entries))
		for _, e := range entries {
			bag := model.RawProfile(e)
			certs = append(certs, model.Certification{
				Title:  bag.Str("title"),
				Issuer: bag.Str("company_name"),
				Date:   bag.Str("date"),
			})
		}
		conn.Certifications = certs
	}

	if dob := raw.Str("dob"); dob != "" && conn.DateOfBirth == nil {
		t, err := time.Parse("2006-01-02", dob)
		if err != nil {
			warns = append(warns, fmt.Sprintf("unparseable date_of_birth %q", dob))
		} else {
			conn.DateOfBirth = &t
		}
	}

	// Top-level company name is a weaker signal than experience; it only
	// fills the gap when nothing else did.
	if v := raw.Str("company_name"); v != "" && conn.CurrentCompany == "" {
		conn.CurrentCompany = v
	}

	// The provider does not carry industry data. A non-nil empty slice marks
	// the field as checked-and-absent rather than never-checked.
	if conn.Industries == nil {
		if v := raw.Strings("industries"); len(v) > 0 {
			conn.Industries = v
		} else {
			conn.Industries = []string{}
		}
	}

	return warns
}

// mergeExperience derives the current company and previous employers from
// the position list. The current position is the first entry flagged
// is_current, falling back to the first entry.
func mergeExperience(conn *model.Connection, experience []map[string]any) {
	if len(experience) == 0 {
		return
	}

	current := experience[0]
	for _, p := range experience {
		if model.RawProfile(p).Bool("is_current") {
			current = p
			break
		}
	}
	if company := model.RawProfile(current).Str("company"); company != "" && conn.CurrentCompany == "" {
		conn.CurrentCompany = company
	}

	if len(conn.PreviousCompanies) == 0 {
		seen := make(map[string]bool, len(experience))
		var previous []string
		for _, p := range experience {
			company := model.RawProfile(p).Str("company")
			if company == "" || company == conn.CurrentCompany || seen[company] {
				continue
			}
			seen[company] = true
			previous = append(previous, company)
		}
		if len(previous) > 0 {
			sort.Strings(previous)
			conn.PreviousCompanies = previous
		}
	}
}
