package timeline

// AudioSources returns every audio source of the timeline placed on the
// absolute timeline: timeline-level sources as given, scene sources shifted
// by the track start and scene start, audio elements additionally by the
// element start.
func (t *Timeline) AudioSources() []AudioSource {
	out := append([]AudioSource(nil), t.Audio...)
	for ti := range t.Tracks {
		tr := &t.Tracks[ti]
		sceneStart := tr.Start
		for si := range tr.Scenes {
			sc := &tr.Scenes[si]
			for _, src := range sc.Audio {
				src.Start += sceneStart
				out = append(out, src)
			}
			for ei := range sc.Elements {
				el := &sc.Elements[ei]
				if el.Audio == nil {
					continue
				}
				src := *el.Audio
				src.Start += sceneStart + el.Start
				out = append(out, src)
			}
			sceneStart += sc.Duration
		}
	}
	return out
}

// AssetRef is an asset referenced by a visual element.
type AssetRef struct {
	URL  string
	Kind string
}

// VisualAssets lists the remote or local files visual elements depend on,
// de-duplicated by URL in first-seen order.
func (t *Timeline) VisualAssets() []AssetRef {
	seen := map[string]bool{}
	var refs []AssetRef
	add := func(url, kind string) {
		if url == "" || seen[url] {
			return
		}
		seen[url] = true
		refs = append(refs, AssetRef{URL: url, Kind: kind})
	}
	for ti := range t.Tracks {
		for si := range t.Tracks[ti].Scenes {
			for _, el := range t.Tracks[ti].Scenes[si].Elements {
				switch el.Type {
				case "image":
					add(el.Src, "image")
				case "video":
					add(el.Src, "video")
				case "pdf":
					add(el.Src, "document")
				case "text":
					add(el.FontURL, "font")
				}
			}
		}
	}
	return refs
}
