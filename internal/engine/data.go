package engine

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/weft-dev/weft/internal/errors"
	"github.com/weft-dev/weft/internal/types"
)

// ExtractVariables parses the XML payload of one data block into variable
// records. The payload is a single-rooted document; the root's name does not
// matter. Variables are declared as Variable elements, optionally grouped
// under Profile or Group containers:
//
//	<Data>
//	  <!-- shown in the browser tab -->
//	  <Variable Name="Title">Home</Variable>
//	  <Profile Name="de">
//	    <Variable Name="Title">Startseite</Variable>
//	  </Profile>
//	  <Group Name="Strings" Profile="server">
//	    <Variable Name="AppName" Type="string" Comment="product name">weft</Variable>
//	  </Group>
//	</Data>
//
// A Variable takes Name, Profile, Group, Type and Comment from attributes;
// Profile and Group fall back to the enclosing container when absent, and an
// explicit empty attribute clears the inherited value. The value comes from
// a nested Value element (taken exactly as written) or else the element's
// own character data (trimmed). The comment falls back from a nested Comment
// element to the Comment attribute to an XML comment immediately preceding
// the Variable.
func ExtractVariables(payload string) ([]types.Variable, error) {
	dec := xml.NewDecoder(strings.NewReader(payload))

	var vars []types.Variable
	scopes := []scope{{}}
	pending := ""

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewDataError(errors.ErrCodeMalformedData, "unparseable data block", err)
		}

		switch t := tok.(type) {
		case xml.Comment:
			pending = strings.TrimSpace(string(t))

		case xml.StartElement:
			enclosing := scopes[len(scopes)-1]

			if t.Name.Local == "Variable" && len(scopes) > 1 {
				v, err := decodeVariable(dec, t, enclosing)
				if err != nil {
					return nil, errors.NewDataError(errors.ErrCodeMalformedData, "unparseable variable element", err)
				}
				if v.Comment == "" {
					v.Comment = pending
				}
				pending = ""

				if v.Name == "" {
					return nil, errors.NewDataError(errors.ErrCodeMalformedData, "variable declaration missing a Name", nil)
				}
				if IsReserved(v.Name) {
					return nil, errors.ErrReservedVariable(v.Name)
				}

				vars = append(vars, v)
				continue
			}

			switch t.Name.Local {
			case "Profile":
				scopes = append(scopes, scope{profile: strings.TrimSpace(attrValue(t, "Name"))})
			case "Group":
				sc := scope{profile: enclosing.profile, group: strings.TrimSpace(attrValue(t, "Name"))}
				if p, ok := lookupAttr(t, "Profile"); ok {
					sc.profile = strings.TrimSpace(p)
				}
				scopes = append(scopes, sc)
			default:
				// The root and unknown containers are transparent; children
				// inherit the enclosing context.
				scopes = append(scopes, enclosing)
			}
			pending = ""

		case xml.EndElement:
			if len(scopes) > 1 {
				scopes = scopes[:len(scopes)-1]
			}
			pending = ""
		}
	}

	return vars, nil
}

// scope carries the profile and group a container element imposes on the
// Variable declarations inside it.
type scope struct {
	profile string
	group   string
}

// decodeVariable reads one Variable element through its closing tag.
func decodeVariable(dec *xml.Decoder, start xml.StartElement, enclosing scope) (types.Variable, error) {
	v := types.Variable{Profile: enclosing.profile, Group: enclosing.group}
	attrComment := ""

	for _, a := range start.Attr {
		switch a.Name.Local {
		case "Name":
			v.Name = strings.TrimSpace(a.Value)
		case "Profile":
			v.Profile = strings.TrimSpace(a.Value)
		case "Group":
			v.Group = strings.TrimSpace(a.Value)
		case "Type":
			v.Type = strings.ToLower(strings.TrimSpace(a.Value))
		case "Comment":
			attrComment = strings.TrimSpace(a.Value)
		}
	}

	var ownText strings.Builder
	childValue := ""
	childComment := ""
	hasChildValue := false
	depth := 1

	for {
		tok, err := dec.Token()
		if err != nil {
			return v, err
		}

		switch t := tok.(type) {
		case xml.CharData:
			if depth == 1 {
				ownText.Write(t)
			}

		case xml.StartElement:
			if depth == 1 {
				switch t.Name.Local {
				case "Value":
					text, err := elementText(dec)
					if err != nil {
						return v, err
					}
					childValue = text
					hasChildValue = true
					continue
				case "Comment":
					text, err := elementText(dec)
					if err != nil {
						return v, err
					}
					childComment = strings.TrimSpace(text)
					continue
				}
			}
			depth++

		case xml.EndElement:
			depth--
			if depth == 0 {
				if hasChildValue {
					v.Value = childValue
				} else {
					v.Value = strings.TrimSpace(ownText.String())
				}

				switch {
				case childComment != "":
					v.Comment = childComment
				case attrComment != "":
					v.Comment = attrComment
				}

				return v, nil
			}
		}
	}
}

// elementText collects the character data of the current element, skipping
// nested markup, and consumes through the element's closing tag.
func elementText(dec *xml.Decoder) (string, error) {
	var sb strings.Builder
	depth := 1

	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.CharData:
			if depth == 1 {
				sb.Write(t)
			}
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
			if depth == 0 {
				return sb.String(), nil
			}
		}
	}
}

func attrValue(el xml.StartElement, name string) string {
	v, _ := lookupAttr(el, name)
	return v
}

func lookupAttr(el xml.StartElement, name string) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}
