package view

import "html/template"

type rowData struct {
	Key      string
	Summary  string
	Detail   template.HTML
	Class    string
	Open     bool
	Selected bool
}

type tabData struct {
	Name   string
	Active bool
}

type regionData struct {
	Name     string
	Rows     []rowData
	Tabs     []tabData
	Hidden   bool
	Scroll   int
	Scrolled bool
}

type pageData struct {
	Title   string
	Regions []regionData
}

func (s *Scoreboard) pageData() pageData {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := pageData{Title: s.event.Name}
	for _, r := range s.doc.Regions() {
		rd := regionData{Name: r.Name}
		switch r.Name {
		case RegionTabs:
			for _, t := range Tabs {
				rd.Tabs = append(rd.Tabs, tabData{Name: t, Active: t == s.state.ActiveTab})
			}
		case RegionPlays, RegionStandings:
			rd.Hidden = r.Name != s.state.ActiveTab
			if !rd.Hidden {
				rd.Scroll = s.state.ScrollOffset
				rd.Scrolled = true
			}
		}
		for _, row := range r.Rows {
			rd.Rows = append(rd.Rows, rowData{
				Key:     row.Key,
				Summary: row.Summary,
				// Detail was sanitised or escaped when the row was built.
				Detail:   template.HTML(row.Detail),
				Class:    row.Class,
				Open:     s.state.IsOpen(row.Key),
				Selected: s.state.Selected == row.Key,
			})
		}
		data.Regions = append(data.Regions, rd)
	}
	return data
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
{{range .Regions}}{{template "region" .}}
{{end}}</body>
</html>
{{define "region"}}<section id="region-{{.Name}}" class="region{{if .Hidden}} hidden{{end}}"{{if .Scrolled}} data-scroll="{{.Scroll}}"{{end}}>
{{- if .Tabs}}<nav>{{range .Tabs}}<button class="tab{{if .Active}} active{{end}}" data-tab="{{.Name}}">{{.Name}}</button>{{end}}</nav>{{end}}
{{- if .Rows}}<ul>{{range .Rows}}
<li id="row-{{.Key}}" class="{{.Class}}{{if .Open}} open{{end}}{{if .Selected}} selected{{end}}" data-key="{{.Key}}"><span class="summary">{{.Summary}}</span>{{if .Open}}<div class="detail">{{.Detail}}</div>{{end}}</li>{{end}}
</ul>{{end}}
</section>{{end}}`))
