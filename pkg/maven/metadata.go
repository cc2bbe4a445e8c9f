package maven

import (
	"encoding/xml"
	"fmt"
	"time"
)

// lastUpdatedFormat is the timestamp layout Maven tooling expects in
// metadata documents.
const lastUpdatedFormat = "20060102150405"

// pomDescription marks generated POMs as coming from this server rather
// than a real build.
const pomDescription = "POM was created by the API Library maven replacement"

// Metadata models the maven-metadata-local.xml document kept alongside
// each artifact.
type Metadata struct {
	XMLName    xml.Name   `xml:"metadata"`
	GroupID    string     `xml:"groupId"`
	ArtifactID string     `xml:"artifactId"`
	Versioning Versioning `xml:"versioning"`
}

// Versioning is the release marker, last-updated stamp and version list of
// a Metadata document.
type Versioning struct {
	Release     string   `xml:"release"`
	LastUpdated string   `xml:"lastUpdated"`
	Versions    Versions `xml:"versions"`
}

// Versions wraps the repeated <version> elements.
type Versions struct {
	Version []string `xml:"version"`
}

// NewMetadata synthesizes a fresh metadata document for an artifact's
// first published version.
func NewMetadata(group, artifact, version string, now time.Time) *Metadata {
	return &Metadata{
		GroupID:    group,
		ArtifactID: artifact,
		Versioning: Versioning{
			Release:     version,
			LastUpdated: now.Format(lastUpdatedFormat),
			Versions:    Versions{Version: []string{version}},
		},
	}
}

// ParseMetadata decodes an existing metadata document.
func ParseMetadata(data []byte) (*Metadata, error) {
	var meta Metadata
	if err := xml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse maven metadata: %w", err)
	}
	return &meta, nil
}

// AddVersion appends version to the version list and moves the release
// marker to it.
func (m *Metadata) AddVersion(version string, now time.Time) {
	m.Versioning.Versions.Version = append(m.Versioning.Versions.Version, version)
	m.Versioning.Release = version
	m.Versioning.LastUpdated = now.Format(lastUpdatedFormat)
}

// project is the minimal POM document build tools need to resolve a jar.
type project struct {
	XMLName           xml.Name `xml:"project"`
	Xmlns             string   `xml:"xmlns,attr"`
	XmlnsXsi          string   `xml:"xmlns:xsi,attr"`
	XsiSchemaLocation string   `xml:"xsi:schemaLocation,attr"`
	ModelVersion      string   `xml:"modelVersion"`
	GroupID           string   `xml:"groupId"`
	ArtifactID        string   `xml:"artifactId"`
	Version           string   `xml:"version"`
	Description       string   `xml:"description"`
}

func newPOM(group, artifact, version string) *project {
	return &project{
		Xmlns:             "http://maven.apache.org/POM/4.0.0",
		XmlnsXsi:          "http://www.w3.org/2001/XMLSchema-instance",
		XsiSchemaLocation: "http://maven.apache.org/POM/4.0.0 http://maven.apache.org/xsd/maven-4.0.0.xsd",
		ModelVersion:      "4.0.0",
		GroupID:           group,
		ArtifactID:        artifact,
		Version:           version,
		Description:       pomDescription,
	}
}

// renderXML serializes a document with an XML declaration, indented for
// human readers.
func renderXML(v interface{}) ([]byte, error) {
	body, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal xml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
