package epg

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"time"

	"github.com/google/renameio/v2"
)

// xmltvTimeLayout is the XMLTV timestamp format; all times emit in UTC.
const xmltvTimeLayout = "20060102150405 +0000"

const xmltvDoctype = `<!DOCTYPE tv SYSTEM "xmltv.dtd">` + "\n"

type xmlTVRoot struct {
	XMLName    xml.Name       `xml:"tv"`
	Source     string         `xml:"source-info-name,attr,omitempty"`
	Generator  string         `xml:"generator-info-name,attr,omitempty"`
	Channels   []xmlChannel   `xml:"channel"`
	Programmes []xmlProgramme `xml:"programme"`
}

type xmlChannel struct {
	ID      string   `xml:"id,attr"`
	Display string   `xml:"display-name"`
	Icon    *xmlIcon `xml:"icon,omitempty"`
}

type xmlIcon struct {
	Src string `xml:"src,attr"`
}

type xmlProgramme struct {
	Start    string     `xml:"start,attr"`
	Stop     string     `xml:"stop,attr"`
	Channel  string     `xml:"channel,attr"`
	Title    xmlValue   `xml:"title"`
	Subtitle *xmlValue  `xml:"sub-title,omitempty"`
	Desc     *xmlValue  `xml:"desc,omitempty"`
	Category []xmlValue `xml:"category,omitempty"`
	Date     string     `xml:"date,omitempty"`
	Live     *xmlEmpty  `xml:"live,omitempty"`
	New      *xmlEmpty  `xml:"new,omitempty"`
}

type xmlValue struct {
	Lang  string `xml:"lang,attr,omitempty"`
	Value string `xml:",chardata"`
}

type xmlEmpty struct{}

// Document is the assembled guide ready for emission.
type Document struct {
	Channels   []Channel
	Programmes []Programme
}

// Marshal renders the XMLTV bytes deterministically: channels sorted by id,
// programmes grouped by channel id and sorted by start within each.
func (d *Document) Marshal() ([]byte, error) {
	channels := append([]Channel(nil), d.Channels...)
	sort.Slice(channels, func(i, j int) bool { return channels[i].ID < channels[j].ID })

	programmes := append([]Programme(nil), d.Programmes...)
	sort.SliceStable(programmes, func(i, j int) bool {
		if programmes[i].ChannelID != programmes[j].ChannelID {
			return programmes[i].ChannelID < programmes[j].ChannelID
		}
		return programmes[i].Start.Before(programmes[j].Start)
	})

	root := &xmlTVRoot{
		Source:    "Teamarr",
		Generator: "teamarr",
	}
	for _, c := range channels {
		xc := xmlChannel{ID: c.ID, Display: c.DisplayName}
		if c.IconURL != "" {
			xc.Icon = &xmlIcon{Src: c.IconURL}
		}
		root.Channels = append(root.Channels, xc)
	}
	for _, p := range programmes {
		xp := xmlProgramme{
			Start:   p.Start.UTC().Format(xmltvTimeLayout),
			Stop:    p.Stop.UTC().Format(xmltvTimeLayout),
			Channel: p.ChannelID,
			Title:   xmlValue{Lang: "en", Value: p.Title},
			Date:    p.Start.UTC().Format("20060102"),
		}
		if p.Subtitle != "" {
			xp.Subtitle = &xmlValue{Lang: "en", Value: p.Subtitle}
		}
		if p.Description != "" {
			xp.Desc = &xmlValue{Lang: "en", Value: p.Description}
		}
		for _, cat := range p.Categories {
			xp.Category = append(xp.Category, xmlValue{Lang: "en", Value: cat})
		}
		// Live/new markers apply to real events only, never filler.
		if p.Kind == KindGame {
			if p.Live {
				xp.Live = &xmlEmpty{}
			}
			if p.New {
				xp.New = &xmlEmpty{}
			}
		}
		root.Programmes = append(root.Programmes, xp)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(xmltvDoctype)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("encode xmltv: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// WriteFile marshals and atomically replaces path, so a reader never sees a
// half-written guide.
func (d *Document) WriteFile(path string) error {
	data, err := d.Marshal()
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0o644)
}

// Validate checks the ordering invariants before emission: per channel,
// programmes must be sorted by start and non-overlapping.
func (d *Document) Validate() error {
	byChannel := make(map[string][]Programme)
	for _, p := range d.Programmes {
		byChannel[p.ChannelID] = append(byChannel[p.ChannelID], p)
	}
	for id, progs := range byChannel {
		sort.SliceStable(progs, func(i, j int) bool { return progs[i].Start.Before(progs[j].Start) })
		var prevStop time.Time
		for _, p := range progs {
			if !p.Start.Before(p.Stop) {
				return fmt.Errorf("channel %s: programme %q has non-positive span", id, p.Title)
			}
			if p.Start.Before(prevStop) {
				return fmt.Errorf("channel %s: programme %q overlaps previous", id, p.Title)
			}
			prevStop = p.Stop
		}
	}
	return nil
}
